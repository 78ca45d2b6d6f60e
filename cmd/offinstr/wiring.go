package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"offinstr/internal/cleanup"
	"offinstr/internal/config"
	"offinstr/internal/instrument"
	"offinstr/internal/packager"
	"offinstr/internal/pipeline"
	"offinstr/internal/stage"
	"offinstr/internal/tactile"
)

// buildAgent creates the agent selected by cfg. A non-empty command
// overrides the configured one.
func buildAgent(cfg *config.Config, command string) (instrument.Agent, error) {
	if command != "" {
		cfg.Agent.Kind = "exec"
		cfg.Agent.Command = command
	}
	switch cfg.Agent.Kind {
	case "passthrough":
		return instrument.PassthroughAgent{}, nil
	case "exec":
		ecfg := tactile.DefaultExecutorConfig()
		ecfg.DefaultTimeout = cfg.GetUnitTimeout()
		return instrument.NewExecAgent(tactile.NewDirectExecutorWithConfig(ecfg), instrument.ExecAgentConfig{
			Command:       cfg.Agent.Command,
			Args:          cfg.Agent.Args,
			UnitTimeout:   cfg.GetUnitTimeout(),
			MaxClassMajor: cfg.Agent.MaxClassMajor,
		}), nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q", cfg.Agent.Kind)
	}
}

// buildStage opens the configured stage directory, or a fresh temp stage
// removed at exit unless stage.keep is set.
func buildStage(cfg *config.Config, registry *cleanup.Registry) (*stage.Stage, error) {
	if cfg.Stage.Dir != "" {
		return stage.New(cfg.Stage.Dir)
	}
	var t cleanup.Tracker = registry
	if cfg.Stage.Keep {
		t = cleanup.Nop{}
	}
	return stage.NewTemp(t)
}

// resourceFS locates the resource directory: absolute paths are used as is,
// relative ones are tried against the working directory and then next to
// the executable.
func resourceFS(cfg *config.Config) fs.FS {
	dir := cfg.Resources.Dir
	if filepath.IsAbs(dir) {
		return os.DirFS(dir)
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir)
	}
	if exe, err := os.Executable(); err == nil {
		return os.DirFS(filepath.Join(filepath.Dir(exe), dir))
	}
	return os.DirFS(dir)
}

func (a *app) newInstrumentor(agent instrument.Agent, st *stage.Stage, injectNative bool) *pipeline.Instrumentor {
	cfg := a.cfg
	return pipeline.New(agent, st, pipeline.Options{
		InjectNative:    injectNative,
		ABI:             cfg.Native.ABI,
		Resources:       resourceFS(cfg),
		Distribution:    cfg.Resources.Distribution,
		BootstrapEntry:  cfg.Resources.BootstrapJar,
		RuntimeEntry:    cfg.Resources.RuntimeJar,
		IsolateArchives: cfg.Stage.IsolateArchives,
		Tracker:         a.registry,
	})
}

// buildPackagers returns the packagers in probe order.
func buildPackagers(cfg *config.Config, streams packager.Streams) []packager.Packager {
	ecfg := tactile.DefaultExecutorConfig()
	ecfg.DefaultTimeout = 0
	ecfg.MaxTimeout = 0
	executor := tactile.NewDirectExecutorWithConfig(ecfg)

	return []packager.Packager{
		packager.NewPlatformPackager(executor, cfg.Packager.Platform.Binary, streams),
		packager.NewGenericPackager(executor,
			cfg.Packager.Generic.Java, cfg.Packager.Generic.R8Jar, cfg.Packager.Generic.MainClass, streams),
	}
}
