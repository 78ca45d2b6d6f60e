package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"offinstr/internal/cleanup"
	"offinstr/internal/logging"
)

type packOptions struct {
	passthrough string
	output      string
	tracker     cleanup.Tracker
}

// PackOption configures PackDirectory.
type PackOption func(*packOptions)

// WithPassthrough copies entries of the original archive that merging
// excludes (native libraries, nested archives) into the output when the
// directory has no file of the same name.
func WithPassthrough(originalArchive string) PackOption {
	return func(o *packOptions) { o.passthrough = originalArchive }
}

// WithOutput writes the archive to path instead of a fresh temp file.
func WithOutput(path string) PackOption {
	return func(o *packOptions) { o.output = path }
}

// WithTracker registers the output archive for removal at exit.
func WithTracker(t cleanup.Tracker) PackOption {
	return func(o *packOptions) { o.tracker = t }
}

// PackDirectory writes every regular file under sourceDir into a new archive
// and returns its path. Entry names are slash-separated paths relative to
// sourceDir; directories are not emitted. A non-nil manifest is written first
// as META-INF/MANIFEST.MF, byte for byte.
func PackDirectory(sourceDir string, manifest *Manifest, opts ...PackOption) (string, error) {
	o := packOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	timer := logging.StartTimer(logging.CategoryArchive, "pack "+sourceDir)
	defer timer.Stop()

	outPath := o.output
	if outPath == "" {
		var err error
		outPath, err = createTempFor("instrumented.jar")
		if err != nil {
			return "", err
		}
		cleanup.Or(o.tracker).Track(outPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", outPath, err)
	}

	written, err := writeArchive(out, sourceDir, manifest, o.passthrough)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", outPath, closeErr)
	}
	if err != nil {
		_ = os.Remove(outPath)
		return "", err
	}

	logging.Archive("packed %d entries from %s into %s", written, sourceDir, outPath)
	return outPath, nil
}

func writeArchive(out io.Writer, sourceDir string, manifest *Manifest, passthrough string) (int, error) {
	zw := zip.NewWriter(out)
	written := make(map[string]struct{})

	if manifest != nil {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate})
		if err != nil {
			return 0, fmt.Errorf("write manifest: %w", err)
		}
		if _, err := w.Write(manifest.Bytes()); err != nil {
			return 0, fmt.Errorf("write manifest: %w", err)
		}
		written[ManifestName] = struct{}{}
	}

	err := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			logging.ArchiveWarn("skipping non-regular file %s", p)
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if _, dup := written[name]; dup {
			return nil
		}
		if err := addFile(zw, p, name, d); err != nil {
			return err
		}
		written[name] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", sourceDir, err)
	}

	if passthrough != "" {
		n, err := copyExcluded(zw, passthrough, written)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			logging.ArchiveDebug("carried %d excluded entries over from %s", n, passthrough)
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	return len(written), nil
}

func addFile(zw *zip.Writer, p, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

func copyExcluded(zw *zip.Writer, originalArchive string, written map[string]struct{}) (int, error) {
	r, err := Open(originalArchive)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n := 0
	for _, f := range r.Files() {
		if isDirEntry(f) || f.Name == ManifestName || !IsExcluded(f.Name) {
			continue
		}
		if _, dup := written[f.Name]; dup {
			continue
		}
		if err := zw.Copy(f); err != nil {
			return n, fmt.Errorf("carry over %s: %w", f.Name, err)
		}
		written[f.Name] = struct{}{}
		n++
	}
	return n, nil
}
