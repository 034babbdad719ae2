package layout

import (
	"sort"
	"strings"
)

const (
	ConflictsSection = "conflicts"
	ReportExtension  = ".ini"
)

// Conflict is one blocked file listed in a halted import report.
//
// Kind is the first word of the report value (e.g. "#perceptual"), Other the
// last word: the stored image the file collided with, either "group/index"
// or an opaque id.
type Conflict struct {
	File  string
	Kind  string
	Other string
}

// ConflictsBuilder reads the [conflicts] section of a halted import report.
type ConflictsBuilder struct {
	conflicts []Conflict
}

func NewConflictsBuilder() *ConflictsBuilder {
	return &ConflictsBuilder{}
}

func (b *ConflictsBuilder) Assign(key, value string) {
	parts := strings.Fields(value)
	c := Conflict{File: key}
	if len(parts) > 0 {
		c.Kind = parts[0]
		c.Other = parts[len(parts)-1]
	}
	b.conflicts = append(b.conflicts, c)
}

func (b *ConflictsBuilder) EndSection() {}

func (b *ConflictsBuilder) Conflicts() []Conflict {
	return b.conflicts
}

// HaltedImports pairs directory entries by stem: an import halts with the
// image left in the hopper next to a "<name>.ini" report, so stems seen
// exactly twice are returned, sorted.
func HaltedImports(entries []string) []string {
	counts := make(map[string]int, len(entries))
	for _, name := range entries {
		counts[strings.TrimSuffix(name, ReportExtension)]++
	}

	halted := make([]string, 0)
	for stem, n := range counts {
		if n == 2 {
			halted = append(halted, stem)
		}
	}
	sort.Strings(halted)
	return halted
}
