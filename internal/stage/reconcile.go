package stage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"offinstr/internal/archive"
	"offinstr/internal/logging"
)

// ReconcileStats counts what Reconcile did.
type ReconcileStats struct {
	Kept       int `json:"kept"`
	Removed    int `json:"removed"`
	PrunedDirs int `json:"pruned_dirs"`
}

// Reconcile deletes every file under the root whose relative path is not an
// entry of archivePath, then prunes directories left empty. Only existence is
// compared, never content. An unreadable archive is an error and nothing is
// deleted.
func (s *Stage) Reconcile(archivePath string) (ReconcileStats, error) {
	var stats ReconcileStats

	r, err := archive.Open(archivePath)
	if err != nil {
		return stats, fmt.Errorf("reconcile: %w", err)
	}
	defer func() { _ = r.Close() }()

	var dirs []string
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.root {
				dirs = append(dirs, p)
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if r.Has(name) {
			stats.Kept++
			return nil
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		logging.StageDebug("removed %s: not an entry of %s", name, filepath.Base(archivePath))
		stats.Removed++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("reconcile %s: %w", s.root, err)
	}

	// WalkDir visits parents first, so walking backwards sees children first.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			stats.PrunedDirs++
		}
	}

	logging.Stage("reconciled %s against %s: kept=%d removed=%d",
		s.root, filepath.Base(archivePath), stats.Kept, stats.Removed)
	return stats, nil
}
