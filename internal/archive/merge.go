package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"offinstr/internal/logging"
)

// MergeStats counts what MergeToDirectory did with each entry.
type MergeStats struct {
	Copied   int `json:"copied"`
	Existing int `json:"existing"`
	Excluded int `json:"excluded"`
	Dirs     int `json:"dirs"`
}

// IsExcluded reports whether an entry is never merged into a staging
// directory: the manifest, native libraries and nested archives.
func IsExcluded(name string) bool {
	return name == ManifestName ||
		strings.HasSuffix(name, ".so") ||
		strings.HasSuffix(name, ".jar")
}

// MergeToDirectory copies every entry of archivePath that does not already
// exist under destDir. It never overwrites, so repeated merges of different
// archives accumulate a union with first-writer-wins on name collisions, and
// merging the same archive twice is a no-op the second time.
func MergeToDirectory(archivePath, destDir string) (MergeStats, error) {
	var stats MergeStats

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return stats, fmt.Errorf("create %s: %w", destDir, err)
	}

	r, err := Open(archivePath)
	if err != nil {
		return stats, err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.Files() {
		if IsExcluded(f.Name) {
			stats.Excluded++
			continue
		}

		dest, err := localPath(destDir, f.Name)
		if err != nil {
			logging.ArchiveWarn("skipping entry of %s: %v", archivePath, err)
			stats.Excluded++
			continue
		}

		if _, err := os.Lstat(dest); err == nil {
			stats.Existing++
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return stats, fmt.Errorf("stat %s: %w", dest, err)
		}

		if isDirEntry(f) {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return stats, fmt.Errorf("create %s: %w", dest, err)
			}
			stats.Dirs++
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return stats, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := copyNewFile(f, dest); err != nil {
			return stats, err
		}
		stats.Copied++
	}

	logging.ArchiveDebug("merged %s into %s: copied=%d existing=%d excluded=%d",
		archivePath, destDir, stats.Copied, stats.Existing, stats.Excluded)
	return stats, nil
}

func copyNewFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}
