package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/job"
	"slotwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

type jobRunner interface {
	Run(ctx context.Context) job.Result
}

const report_serve_write = "serve.write"

// newServeMux exposes the job over http, POST /run always answers 200 with the result.
func newServeMux(runner jobRunner, tel telemetry.API) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		result := runner.Run(r.Context())
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(result)
		if err != nil {
			tel.ReportWarning(report_serve_write, err, r.URL.Path)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			tel.ReportWarning(report_serve_write, err, r.URL.Path)
		}
	})
	return mux
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for POST /run and perform a run for every request.",
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

		port := config.Port
		if servePort != 0 {
			port = servePort
		}
		return serviceutil.StartHttpServer(ctx, port, newServeMux(runner, tel))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on, overrides the config")
}
