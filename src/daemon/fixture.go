package daemon

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/curator_link/src/protocol"
)

// Match is one canned similarity result.
type Match struct {
	Group uint32 `toml:"group"`
	Index uint32 `toml:"index"`
	Diff  uint32 `toml:"diff"`
}

// Fixture describes what the fake daemon answers with.
//
//	config_path     = "/etc/fs-curator/curator.ini"
//	collection_path = "/srv/collection"
//
//	[similar]
//	"/srv/hopper/inbox/a.jpg" = [{ group = 4, index = 7, diff = 2 }]
type Fixture struct {
	ConfigPath     string             `toml:"config_path"`
	CollectionPath string             `toml:"collection_path"`
	Similar        map[string][]Match `toml:"similar"`
}

// LoadFixture decodes a TOML fixture file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Fixture{}, fmt.Errorf("failed to load fixture %s: %w", path, err)
	}
	if f.ConfigPath == "" || f.CollectionPath == "" {
		return Fixture{}, fmt.Errorf("fixture %s: config_path and collection_path are required", path)
	}
	return f, nil
}

// Lookup returns the canned matches for path, at most limit of them.
func (f Fixture) Lookup(path string, limit uint32) ([]protocol.Similar, bool) {
	matches, ok := f.Similar[path]
	if !ok {
		return nil, false
	}
	if uint32(len(matches)) > limit {
		matches = matches[:limit]
	}
	out := make([]protocol.Similar, len(matches))
	for i, m := range matches {
		out[i] = protocol.Similar{Group: m.Group, Index: m.Index, Diff: m.Diff}
	}
	return out, true
}
