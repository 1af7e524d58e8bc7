package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProfileStore manages the on-disk browser state of identities.
type ProfileStore interface {
	// Dir returns the profile directory of identity index.
	Dir(index int) string

	// Ensure creates the directory if missing.
	Ensure(dir string) error

	// Reset destroys the directory and recreates it empty.
	Reset(dir string) error
}

var _ ProfileStore = (*DirProfileStore)(nil)

// DirProfileStore keeps profiles as <root>/worker_<n>, n starting at 1.
type DirProfileStore struct {
	Root string
}

func (s *DirProfileStore) Dir(index int) string {
	return filepath.Join(s.Root, fmt.Sprintf("worker_%d", index+1))
}

func (s *DirProfileStore) Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("engine: create profile %s: %w", dir, err)
	}
	return nil
}

func (s *DirProfileStore) Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("engine: remove profile %s: %w", dir, err)
	}
	return s.Ensure(dir)
}
