// Package sink persists downloaded media and screenshots.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink stores bytes under a caller-supplied relative path.
type Sink interface {
	Write(ctx context.Context, path string, data []byte) error
}

var _ Sink = (*Dir)(nil)

// Dir writes files below a base directory, creating parents as needed.
type Dir struct {
	baseDir string
}

// NewDir returns a Dir rooted at baseDir.
func NewDir(baseDir string) *Dir {
	return &Dir{baseDir: baseDir}
}

// Write stores data at baseDir/path. Paths escaping the base directory are
// rejected.
func (d *Dir) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("sink: create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	return nil
}

func (d *Dir) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("sink: invalid path %q", path)
	}
	return filepath.Join(d.baseDir, clean), nil
}
