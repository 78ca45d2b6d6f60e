package packager

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPackager is returned when no packager passes its capability probe.
	ErrNoPackager = errors.New("no packager available")

	// ErrInstrumentation is returned when the pipeline fails before dispatch.
	ErrInstrumentation = errors.New("instrumentation failed")
)

// ExitError carries a packager's non-zero exit status.
type ExitError struct {
	Packager string
	Code     int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Packager, e.Code)
}
