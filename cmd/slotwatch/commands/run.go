package commands

import (
	"encoding/json"
	"io"
	"slotwatch/internal/job"

	"github.com/spf13/cobra"
)

const report_run_setup = "run.setup"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the page once, announce and record new slots, print the result as JSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		shutdown := setupTelemetry(ctx)
		defer shutdown()

		runner, closer, err := initRunner(ctx, config, clock, tel)
		if err != nil {
			// a run never fails towards its invoker, setup errors are results too
			tel.ReportBroken(report_run_setup, err)
			return writeResult(cmd.OutOrStdout(), job.Result{Err: err})
		}
		defer closer()

		return writeResult(cmd.OutOrStdout(), runner.Run(ctx))
	},
}

// writeResult prints a result, a failed run still exits successfully.
func writeResult(out io.Writer, result job.Result) error {
	encoder := json.NewEncoder(out)
	return encoder.Encode(result)
}
