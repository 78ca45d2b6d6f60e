package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"offinstr/internal/packager"
	"offinstr/internal/pipeline"
)

func newWrapCmd(a *app) *cobra.Command {
	var reportPath, agentCmd string
	cmd := &cobra.Command{
		Use:   "wrap -- <packager arguments>...",
		Short: "Instrument a packager's input archives, then run the packager",
		Long: `Takes the command line of an R8 invocation, instruments every archive
listed after -injars and then runs R8 with the unmodified arguments.

The platform build system's R8 wrapper is used when it is on PATH (it
packages native libraries itself); otherwise R8 is run from packager.generic.r8_jar
and the native runtime libraries are injected into each archive.

If instrumentation fails R8 is not run and offinstr exits with status 1.
Otherwise the exit status is R8's.`,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			agent, err := buildAgent(a.cfg, agentCmd)
			if err != nil {
				return err
			}
			adapter := &packager.Adapter{
				Packagers: buildPackagers(a.cfg, packager.Streams{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}),
				InputFlag: a.cfg.Packager.InputFlag,
				NewPipeline: func(injectNative bool) (packager.Pipeline, error) {
					st, err := buildStage(a.cfg, a.registry)
					if err != nil {
						return nil, err
					}
					return a.newInstrumentor(agent, st, injectNative), nil
				},
				OnReport: func(r *pipeline.Report) {
					if err := a.writeReport(r, reportPath); err != nil {
						a.logger.Warn("Could not write report", zap.Error(err))
					}
				},
			}
			return adapter.Run(ctx, args)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a canonical JSON report to this file")
	cmd.Flags().StringVar(&agentCmd, "agent", "", "Transformer command (overrides config)")
	return cmd
}
