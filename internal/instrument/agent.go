package instrument

import (
	"context"
)

// Transformer rewrites one compiled unit.
type Transformer interface {
	// Transform returns the instrumented bytes for unit. Returning
	// ErrUnsupportedClassVersion (possibly wrapped) marks the unit as
	// incompatible rather than failed.
	Transform(ctx context.Context, unit Unit, data []byte) ([]byte, error)
}

// Agent is a Transformer with a process-level installation step.
type Agent interface {
	Transformer

	// Install prepares the agent. It is idempotent and must be called
	// before the first Transform.
	Install(ctx context.Context) error

	// Name identifies the agent in logs and reports.
	Name() string
}

// PassthroughAgent returns every unit unchanged.
type PassthroughAgent struct{}

// Name implements Agent.
func (PassthroughAgent) Name() string { return "passthrough" }

// Install implements Agent.
func (PassthroughAgent) Install(context.Context) error { return nil }

// Transform implements Transformer.
func (PassthroughAgent) Transform(_ context.Context, _ Unit, data []byte) ([]byte, error) {
	return data, nil
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, unit Unit, data []byte) ([]byte, error)

// Transform implements Transformer.
func (f TransformFunc) Transform(ctx context.Context, unit Unit, data []byte) ([]byte, error) {
	return f(ctx, unit, data)
}
