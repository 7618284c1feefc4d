package commands

import (
	"log/slog"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

var runImmediately bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run on the configured cron schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := serviceutil.SignalContext()
		shutdown := setupTelemetry(ctx)
		defer shutdown()
		telemetry.InstrumentPerfStats(ctx, tel)

		runner, closer, err := initRunner(ctx, config, clock, tel)
		if err != nil {
			return err
		}
		defer closer()

		out := cmd.OutOrStdout()
		run := func() {
			err := writeResult(out, runner.Run(ctx))
			if err != nil {
				slog.Warn("failed to write result", "err", err)
			}
		}

		cron := chrono.NewStandardCron(clock, tel)
		err = cron.Cron(config.Schedule, run)
		if err != nil {
			cron.Stop()
			return err
		}
		slog.Info("watching", "schedule", config.Schedule, "url", config.Page.Url)

		if runImmediately {
			run()
		}

		<-ctx.Done()
		slog.Info("waiting for the running job to finish")
		<-cron.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&runImmediately, "now", false, "run once immediately instead of waiting for the first tick")
}
