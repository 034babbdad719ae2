package fsreader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// LineReader streams a text file line by line, in order, without trailing
// newlines.
type LineReader interface {
	EachLine(ctx context.Context, path string, fn func(line string) error) error
}

// DirLister lists the entry names of a directory.
type DirLister interface {
	ListEntries(ctx context.Context, path string) ([]string, error)
}

// FS is both capabilities.
type FS interface {
	LineReader
	DirLister
}

// Reduce folds fn over the lines of path.
func Reduce[T any](ctx context.Context, r LineReader, path string, fn func(acc T, line string) T, initial T) (T, error) {
	acc := initial
	err := r.EachLine(ctx, path, func(line string) error {
		acc = fn(acc, line)
		return nil
	})
	return acc, err
}

// Local reads the operating system's filesystem.
type Local struct{}

const maxLineSize = 1 << 20

func (Local) EachLine(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(strings.TrimSuffix(scanner.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func (Local) ListEntries(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
