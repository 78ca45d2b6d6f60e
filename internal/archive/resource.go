package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"offinstr/internal/cleanup"
	"offinstr/internal/logging"
)

// ExtractResource copies a resource bundled with the tool out of fsys into a
// fresh temp file registered with t. A missing resource yields
// ErrResourceMissing.
func ExtractResource(fsys fs.FS, resourcePath string, t cleanup.Tracker) (string, error) {
	if fsys == nil {
		return "", fmt.Errorf("%s: no resource filesystem: %w", resourcePath, ErrResourceMissing)
	}
	in, err := fsys.Open(resourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to find %s in resources: %w", resourcePath, ErrResourceMissing)
		}
		return "", fmt.Errorf("open resource %s: %w", resourcePath, err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := createTempFor(path.Base(resourcePath))
	if err != nil {
		return "", err
	}
	cleanup.Or(t).Track(tmp)

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy resource %s: %w", resourcePath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}

	logging.ArchiveDebug("extracted resource %s to %s", resourcePath, tmp)
	return tmp, nil
}
