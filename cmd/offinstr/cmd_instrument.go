package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"offinstr/internal/native"
	"offinstr/internal/pipeline"
)

type instrumentFlags struct {
	native      bool
	abi         string
	report      string
	stageDir    string
	agent       string
	sharedStage bool
}

func newInstrumentCmd(a *app) *cobra.Command {
	var f instrumentFlags
	cmd := &cobra.Command{
		Use:   "instrument <archive>...",
		Short: "Instrument jar archives in place",
		Long: `Runs the instrumentation agent over every class of each archive and
replaces the archive with the instrumented result. Classes the agent cannot
transform are kept as they were. Any other failure stops the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInstrument(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.native, "native", false, "Inject the native runtime libraries")
	cmd.Flags().StringVar(&f.abi, "abi", "", fmt.Sprintf("Target ABI %v (default from config)", native.SupportedABIs()))
	cmd.Flags().StringVar(&f.report, "report", "", "Write a canonical JSON report to this file")
	cmd.Flags().StringVar(&f.stageDir, "stage", "", "Staging directory (default: a temp directory)")
	cmd.Flags().StringVar(&f.agent, "agent", "", "Transformer command (overrides config)")
	cmd.Flags().BoolVar(&f.sharedStage, "shared-stage", false, "Do not reset the stage between archives")
	return cmd
}

func (a *app) applyInstrumentFlags(f instrumentFlags) {
	if f.abi != "" {
		a.cfg.Native.ABI = f.abi
	}
	if f.stageDir != "" {
		a.cfg.Stage.Dir = f.stageDir
	}
	if f.native {
		a.cfg.Native.Inject = true
	}
	if f.sharedStage {
		a.cfg.Stage.IsolateArchives = false
	}
}

func (a *app) runInstrument(cmd *cobra.Command, args []string, f instrumentFlags) error {
	ctx, cancel := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.applyInstrumentFlags(f)
	if a.cfg.Native.Inject {
		if _, err := native.PayloadSetFor(a.cfg.Native.ABI); err != nil {
			return err
		}
	}

	agent, err := buildAgent(a.cfg, f.agent)
	if err != nil {
		return err
	}
	st, err := buildStage(a.cfg, a.registry)
	if err != nil {
		return err
	}
	a.logger.Info("Instrumenting archives",
		zap.Strings("archives", args),
		zap.String("agent", agent.Name()),
		zap.String("stage", st.Root()))

	report, err := a.newInstrumentor(agent, st, a.cfg.Native.Inject).InstrumentArchives(ctx, args)
	if werr := a.writeReport(report, f.report); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
	return nil
}

func (a *app) writeReport(report *pipeline.Report, path string) error {
	if report == nil || path == "" {
		return nil
	}
	if err := report.WriteJSON(path); err != nil {
		return err
	}
	a.logger.Debug("Wrote report", zap.String("path", path))
	return nil
}

// contextOrBackground guards commands executed without ExecuteContext.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
