// Package stage owns the working directory that agent output and merged
// resources accumulate in before an archive is packed.
//
// A Stage is not safe for concurrent use, and two processes must not share
// a stage root: clearing, reconciling and packing interleave non-atomically.
package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"offinstr/internal/cleanup"
	"offinstr/internal/logging"
)

// Stage is a staging directory with an owned root.
type Stage struct {
	root string
}

// New opens (creating if needed) a stage rooted at root.
func New(root string) (*Stage, error) {
	if root == "" {
		return nil, errors.New("stage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve stage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create stage root %s: %w", abs, err)
	}
	return &Stage{root: abs}, nil
}

// NewTemp creates a stage in a fresh temp directory registered with t.
func NewTemp(t cleanup.Tracker) (*Stage, error) {
	dir, err := os.MkdirTemp("", "offinstr-stage-*")
	if err != nil {
		return nil, fmt.Errorf("create temp stage: %w", err)
	}
	cleanup.Or(t).Track(dir)
	logging.StageDebug("created temp stage %s", dir)
	return &Stage{root: dir}, nil
}

// Root returns the stage's absolute root path.
func (s *Stage) Root() string { return s.root }

// Path joins slash-separated elements onto the root.
func (s *Stage) Path(elem ...string) string {
	parts := make([]string, 0, len(elem)+1)
	parts = append(parts, s.root)
	for _, e := range elem {
		parts = append(parts, filepath.FromSlash(e))
	}
	return filepath.Join(parts...)
}

// ClearTopLevel removes the non-directory entries directly under the root.
// Subdirectories and their contents are left alone.
func (s *Stage) ClearTopLevel() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read stage %s: %w", s.root, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil {
			return removed, fmt.Errorf("clear stage: %w", err)
		}
		removed++
	}
	if removed > 0 {
		logging.Stage("cleared %d stale files from %s", removed, s.root)
	}
	return removed, nil
}

// Reset removes everything under the root, keeping the root itself.
func (s *Stage) Reset() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read stage %s: %w", s.root, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("reset stage: %w", err)
		}
	}
	logging.StageDebug("reset %s (%d entries)", s.root, len(entries))
	return nil
}

// NativeDir is the directory native libraries for abi are placed in.
func (s *Stage) NativeDir(abi string) string {
	return filepath.Join(s.root, "lib", abi)
}

// EnsureNativeDir creates NativeDir(abi).
func (s *Stage) EnsureNativeDir(abi string) (string, error) {
	dir := s.NativeDir(abi)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create native dir: %w", err)
	}
	return dir, nil
}

// Files lists the regular files under the root as sorted slash-separated
// relative paths.
func (s *Stage) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list stage %s: %w", s.root, err)
	}
	sort.Strings(files)
	return files, nil
}
