package layout

import (
	"os"
	"strings"
)

const HopperSection = "hopper"

// Hopper is a staging directory the daemon watches for incoming files.
type Hopper struct {
	Name string
	Path string
}

// HopperName returns the component after the last path separator of path,
// or path itself when it has none.
func HopperName(path string) string {
	if i := strings.LastIndexByte(path, os.PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}

type hopperSection struct {
	name    string
	path    string
	hasName bool
	hasPath bool
}

// HopperBuilder collects one Hopper per [hopper] section with a path.
type HopperBuilder struct {
	section hopperSection
	hoppers []Hopper
}

func NewHopperBuilder() *HopperBuilder {
	return &HopperBuilder{}
}

func (b *HopperBuilder) Assign(key, value string) {
	if key != "path" {
		return
	}
	b.section = hopperSection{
		name:    HopperName(value),
		path:    value,
		hasName: true,
		hasPath: true,
	}
}

func (b *HopperBuilder) EndSection() {
	s := b.section
	b.section = hopperSection{}
	if s.hasName && s.hasPath {
		b.hoppers = append(b.hoppers, Hopper{Name: s.name, Path: s.path})
	}
}

func (b *HopperBuilder) Hoppers() []Hopper {
	return b.hoppers
}
