package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/danmuck/curator_link/src/fsreader"
	"github.com/danmuck/curator_link/src/ini"
	"github.com/danmuck/curator_link/src/layout"
)

func (s *Service) hopperPath(name string) (string, error) {
	if !s.Connected() {
		return "", ErrNotConnected
	}
	h, ok := s.Hopper(name)
	if !ok {
		return "", fmt.Errorf("unknown hopper %q", name)
	}
	return h.Path, nil
}

// HaltedImports lists the imports stuck in the named hopper: files that sit
// next to a "<file>.ini" conflict report.
func (s *Service) HaltedImports(ctx context.Context, hopperName string) ([]string, error) {
	dir, err := s.hopperPath(hopperName)
	if err != nil {
		return nil, err
	}
	entries, err := s.fs.ListEntries(ctx, dir)
	if err != nil {
		return nil, err
	}
	return layout.HaltedImports(entries), nil
}

// Conflicts reads the conflict report of one halted import.
func (s *Service) Conflicts(ctx context.Context, hopperName, name string) ([]layout.Conflict, error) {
	dir, err := s.hopperPath(hopperName)
	if err != nil {
		return nil, err
	}

	builder := layout.NewConflictsBuilder()
	parser := ini.NewParser().With(layout.ConflictsSection, builder)
	report := filepath.Join(dir, name+layout.ReportExtension)
	if _, err := fsreader.Reduce(ctx, s.fs, report, feedLine, parser); err != nil {
		return nil, fmt.Errorf("failed to read conflict report %s: %w", report, err)
	}
	parser.Close()
	return builder.Conflicts(), nil
}

func feedLine(p *ini.Parser, line string) *ini.Parser {
	p.Feed(line)
	return p
}
