package packager

import (
	"context"
	"fmt"

	"offinstr/internal/logging"
	"offinstr/internal/pipeline"
)

// Pipeline instruments archives in place.
type Pipeline interface {
	InstrumentArchives(ctx context.Context, paths []string) (*pipeline.Report, error)
}

// PipelineFactory builds the pipeline for the selected packager.
type PipelineFactory func(injectNative bool) (Pipeline, error)

// Adapter instruments a packager's input archives and then runs the packager.
type Adapter struct {
	// Packagers are probed in order.
	Packagers []Packager
	// NewPipeline is called once the packager is known.
	NewPipeline PipelineFactory
	// InputFlag introduces input archives; DefaultInputFlag when empty.
	InputFlag string
	// OnReport, when set, receives the pipeline report.
	OnReport func(*pipeline.Report)
}

// Select returns the first available packager.
func (a *Adapter) Select(ctx context.Context) (Packager, error) {
	for _, p := range a.Packagers {
		if p.Available(ctx) {
			logging.PackagerDebug("selected %s packager", p.Name())
			return p, nil
		}
		logging.Packager("no %s packager found, trying next", p.Name())
	}
	return nil, ErrNoPackager
}

// Run selects a packager, instruments the archives named on its command line
// and, only if that succeeded, runs the packager with args unchanged.
func (a *Adapter) Run(ctx context.Context, args []string) error {
	p, err := a.Select(ctx)
	if err != nil {
		return err
	}

	flag := a.InputFlag
	if flag == "" {
		flag = DefaultInputFlag
	}
	inputs := ParseInputArchives(args, flag)
	logging.Packager("instrumenting %d input archives for %s packager", len(inputs), p.Name())

	pl, err := a.NewPipeline(p.InjectNative())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstrumentation, err)
	}
	report, err := pl.InstrumentArchives(ctx, inputs)
	if a.OnReport != nil && report != nil {
		a.OnReport(report)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstrumentation, err)
	}

	return p.Run(ctx, args)
}
