package logcfg

import (
	"os"

	logs "github.com/danmuck/smplog"
)

const (
	envConfigPath       = "SMPLOG_CONFIG"
	envCuratorLogConfig = "CURATOR_LOG_CONFIG"
)

// Load returns the first smplog config that parses, trying the environment,
// then extra, then the working directory. Defaults otherwise.
func Load(extra ...string) logs.Config {
	for _, path := range candidates(os.Getenv, extra) {
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}
	return logs.DefaultConfig()
}

func candidates(getenv func(string) string, extra []string) []string {
	var paths []string
	for _, key := range []string{envCuratorLogConfig, envConfigPath} {
		if path := getenv(key); path != "" {
			paths = append(paths, path)
		}
	}
	for _, path := range extra {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return append(paths,
		"./smplog.config.toml",
		"./local/smplog.config.toml",
	)
}
