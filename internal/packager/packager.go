// Package packager hands the instrumented archives on to a downstream
// packaging tool. Two strategies exist, a platform build-system wrapper and
// plain R8; the first whose capability probe succeeds is used.
package packager

import (
	"context"
	"fmt"
	"io"
	"os"

	"offinstr/internal/logging"
	"offinstr/internal/tactile"
)

// Packager is one downstream packaging strategy.
type Packager interface {
	// Name identifies the packager in logs.
	Name() string
	// Available reports whether the packager can run on this host.
	Available(ctx context.Context) bool
	// InjectNative reports whether the pipeline must add the native
	// runtime libraries itself before this packager runs.
	InjectNative() bool
	// Run invokes the packager with the unmodified command line.
	Run(ctx context.Context, args []string) error
}

// Streams receive a packager's output live.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StdStreams forwards to the process's own stdout and stderr.
func StdStreams() Streams {
	return Streams{Stdout: os.Stdout, Stderr: os.Stderr}
}

// PlatformPackager runs the platform build system's R8 wrapper binary. The
// build system packages native libraries itself.
type PlatformPackager struct {
	Binary   string
	executor tactile.Executor
	streams  Streams
}

// NewPlatformPackager creates a PlatformPackager.
func NewPlatformPackager(executor tactile.Executor, binary string, streams Streams) *PlatformPackager {
	return &PlatformPackager{Binary: binary, executor: executor, streams: streams}
}

// Name implements Packager.
func (p *PlatformPackager) Name() string { return "platform" }

// InjectNative implements Packager.
func (p *PlatformPackager) InjectNative() bool { return false }

// Available implements Packager.
func (p *PlatformPackager) Available(ctx context.Context) bool {
	if p.Binary == "" {
		return false
	}
	_, err := p.executor.LookPath(p.Binary)
	return err == nil
}

// Run implements Packager.
func (p *PlatformPackager) Run(ctx context.Context, args []string) error {
	return run(ctx, p.executor, p.Name(), tactile.Command{
		Binary:    p.Binary,
		Arguments: args,
		Stdout:    p.streams.Stdout,
		Stderr:    p.streams.Stderr,
	})
}

// GenericPackager runs R8 from a jar on a JVM.
type GenericPackager struct {
	Java      string
	R8Jar     string
	MainClass string
	executor  tactile.Executor
	streams   Streams
}

// NewGenericPackager creates a GenericPackager.
func NewGenericPackager(executor tactile.Executor, java, r8Jar, mainClass string, streams Streams) *GenericPackager {
	return &GenericPackager{
		Java:      java,
		R8Jar:     r8Jar,
		MainClass: mainClass,
		executor:  executor,
		streams:   streams,
	}
}

// Name implements Packager.
func (p *GenericPackager) Name() string { return "generic" }

// InjectNative implements Packager.
func (p *GenericPackager) InjectNative() bool { return true }

// Available implements Packager.
func (p *GenericPackager) Available(ctx context.Context) bool {
	if p.R8Jar == "" || p.MainClass == "" {
		return false
	}
	if info, err := os.Stat(p.R8Jar); err != nil || info.IsDir() {
		return false
	}
	_, err := p.executor.LookPath(p.Java)
	return err == nil
}

// Run implements Packager.
func (p *GenericPackager) Run(ctx context.Context, args []string) error {
	argv := append([]string{"-cp", p.R8Jar, p.MainClass}, args...)
	return run(ctx, p.executor, p.Name(), tactile.Command{
		Binary:    p.Java,
		Arguments: argv,
		Stdout:    p.streams.Stdout,
		Stderr:    p.streams.Stderr,
	})
}

func run(ctx context.Context, executor tactile.Executor, name string, cmd tactile.Command) error {
	logging.Packager("dispatching to %s packager: %s", name, cmd.CommandString())
	res, err := executor.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s packager: %w", name, err)
	}
	switch {
	case !res.Success:
		return fmt.Errorf("%s packager: %s", name, res.Error)
	case res.Killed:
		return fmt.Errorf("%s packager killed: %s", name, res.KillReason)
	case res.ExitCode != 0:
		return &ExitError{Packager: name, Code: res.ExitCode}
	}
	logging.PackagerDebug("%s packager finished in %s", name, res.Duration)
	return nil
}
