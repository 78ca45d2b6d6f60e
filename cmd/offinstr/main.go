// Command offinstr instruments jar archives ahead of time for targets that
// cannot attach an instrumentation agent at runtime.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"offinstr/internal/cleanup"
	"offinstr/internal/config"
	"offinstr/internal/logging"
	"offinstr/internal/packager"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	// Global flags
	cfgPath string
	verbose bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *cleanup.Registry

	stdout io.Writer
	stderr io.Writer
}

func newApp() *app {
	return &app{
		registry: cleanup.New(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "offinstr",
		Short: "Offline instrumentation of jar archives",
		Long: `offinstr applies an instrumentation agent to every class of a jar ahead
of time and repackages the result in place, for targets such as Android
images that cannot attach the agent at runtime.

Instrument archives directly:
  offinstr instrument app.jar lib.jar --native

Or wrap the R8 invocation of a build and instrument its -injars first:
  offinstr wrap -- -injars app.jar -outjars out.jar`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "offinstr.yaml", "Config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newInstrumentCmd(a),
		newWrapCmd(a),
		newInspectCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.Configure(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Categories: cfg.Logging.Categories,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	logging.BootDebug("loaded config from %s", a.cfgPath)
	return nil
}

// exitCode maps a command error to the process exit status. A packager's
// own non-zero status is passed through.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *packager.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()

	_ = a.registry.Run()
	logging.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
