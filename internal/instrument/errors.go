package instrument

import "errors"

var (
	// ErrUnsupportedClassVersion is returned by a Transformer for a unit
	// compiled for a class file version the agent cannot handle.
	ErrUnsupportedClassVersion = errors.New("unsupported class file version")

	// ErrNotClassFile is returned by ClassVersion for data without the class
	// file magic.
	ErrNotClassFile = errors.New("not a class file")

	// ErrAgentNotInstalled is returned by Transform before Install succeeded.
	ErrAgentNotInstalled = errors.New("agent not installed")
)
