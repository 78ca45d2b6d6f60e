// Package archive implements the primitive operations offinstr performs on a
// single jar/zip archive: entry lookup and extraction, manifest access,
// additive merging into a directory and packing a directory back into an
// archive. Nothing here keeps state between calls; every operation is given
// and returns explicit paths.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"offinstr/internal/cleanup"
	"offinstr/internal/logging"
)

// ManifestName is the archive's distinguished metadata entry.
const ManifestName = "META-INF/MANIFEST.MF"

// Entry describes one archive entry.
type Entry struct {
	Name  string `json:"name"`
	Size  uint64 `json:"size"`
	CRC32 uint32 `json:"crc32"`
	Dir   bool   `json:"dir"`
}

// Reader is an opened archive indexed by entry name.
type Reader struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

// Open opens an archive for random access.
func Open(archivePath string) (*Reader, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return &Reader{path: archivePath, zr: zr, files: files}, nil
}

// Close releases the archive.
func (r *Reader) Close() error {
	if r == nil || r.zr == nil {
		return nil
	}
	return r.zr.Close()
}

// Path returns the archive's file path.
func (r *Reader) Path() string { return r.path }

// Has reports whether an entry with exactly this name exists.
func (r *Reader) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// Files returns the raw zip entries in archive order.
func (r *Reader) Files() []*zip.File {
	return r.zr.File
}

// Entries lists every entry in archive order.
func (r *Reader) Entries() []Entry {
	entries := make([]Entry, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		entries = append(entries, Entry{
			Name:  f.Name,
			Size:  f.UncompressedSize64,
			CRC32: f.CRC32,
			Dir:   isDirEntry(f),
		})
	}
	return entries
}

// CopyEntry streams one entry's bytes into w.
func (r *Reader) CopyEntry(name string, w io.Writer) (int64, error) {
	f, ok := r.files[name]
	if !ok {
		return 0, fmt.Errorf("%s in %s: %w", name, r.path, ErrEntryNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("read entry %s: %w", name, err)
	}
	return n, nil
}

// ReadEntry returns one entry's bytes.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	var buf bytes.Buffer
	if f, ok := r.files[name]; ok {
		buf.Grow(int(f.UncompressedSize64))
	}
	if _, err := r.CopyEntry(name, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ListEntries lists the entries of an archive.
func ListEntries(archivePath string) ([]Entry, error) {
	r, err := Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.Entries(), nil
}

// EntryExists reports whether entryName exists in the archive. It fails
// closed: any read error is logged and reported as absent.
func EntryExists(archivePath, entryName string) bool {
	r, err := Open(archivePath)
	if err != nil {
		logging.ArchiveError("entry lookup %s: %v", entryName, err)
		return false
	}
	defer func() { _ = r.Close() }()
	return r.Has(entryName)
}

// ExtractEntry copies one entry of archivePath to destPath, replacing any
// existing file. A missing entry yields ErrEntryNotFound, which callers are
// expected to log rather than abort on unless the entry is mandatory.
func ExtractEntry(archivePath, entryName, destPath string) error {
	r, err := Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if !r.Has(entryName) {
		logging.ArchiveWarn("%s does not exist in %s", entryName, archivePath)
		return fmt.Errorf("%s in %s: %w", entryName, archivePath, ErrEntryNotFound)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := r.CopyEntry(entryName, out); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destPath, err)
	}
	logging.ArchiveDebug("extracted %s to %s", entryName, destPath)
	return nil
}

// ExtractEntryToTemp extracts one entry into a fresh temp file named after
// the entry's base name and registers it with t.
func ExtractEntryToTemp(archivePath, entryName string, t cleanup.Tracker) (string, error) {
	tmp, err := createTempFor(path.Base(entryName))
	if err != nil {
		return "", err
	}
	cleanup.Or(t).Track(tmp)

	if err := ExtractEntry(archivePath, entryName, tmp); err != nil {
		return "", err
	}
	return tmp, nil
}

func createTempFor(baseName string) (string, error) {
	ext := path.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)
	f, err := os.CreateTemp("", stem+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", baseName, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// localPath maps an entry name onto a path under root, rejecting names that
// would escape it.
func localPath(root, name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")
	if clean == "" || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafeEntry)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}
