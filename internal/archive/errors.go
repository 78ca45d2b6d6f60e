package archive

import "errors"

// Archive layer errors.
var (
	// ErrEntryNotFound is returned when a named entry is absent from an archive.
	ErrEntryNotFound = errors.New("entry not found in archive")

	// ErrResourceMissing is returned when a bundled resource cannot be found.
	// Callers treat it as fatal.
	ErrResourceMissing = errors.New("bundled resource missing")

	// ErrUnsafeEntry is returned for entry names that would escape a
	// destination directory.
	ErrUnsafeEntry = errors.New("unsafe entry name")
)
