package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/service"
	logs "github.com/danmuck/smplog"
)

const (
	defaultConfigPath         = "./local/curator.toml"
	defaultDialTimeoutSeconds = 5
	maxPhashDiff              = 64
)

type RuntimeConfig struct {
	Address            string `toml:"address"`
	MaxDiff            uint32 `toml:"max_diff"`
	DialTimeoutSeconds uint64 `toml:"dial_timeout_seconds"`
	LogConfig          string `toml:"log_config"`
}

func defaultConfig() RuntimeConfig {
	return RuntimeConfig{
		Address:            transport.DefaultAddress,
		MaxDiff:            service.DefaultMaxDiff,
		DialTimeoutSeconds: defaultDialTimeoutSeconds,
	}
}

// loadRuntimeConfig layers path over the defaults. A missing file is only an
// error when the caller named it explicitly.
func loadRuntimeConfig(path string, explicit bool) (RuntimeConfig, error) {
	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return defaultConfig(), nil
		}
		return cfg, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logs.Warnf("%s: ignoring unknown key(s) %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.validate()
}

func (c RuntimeConfig) validate() error {
	if _, err := transport.ParseAddress(c.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Address, err)
	}
	if c.MaxDiff == 0 || c.MaxDiff > maxPhashDiff {
		return fmt.Errorf("max_diff must be in 1..%d, got %d", maxPhashDiff, c.MaxDiff)
	}
	if c.DialTimeoutSeconds == 0 {
		return fmt.Errorf("dial_timeout_seconds must be >= 1")
	}
	return nil
}

func (c RuntimeConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}
