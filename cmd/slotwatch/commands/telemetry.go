package commands

import (
	"context"
	"log/slog"
	"slotwatch/internal/components/telemetry"
	"time"
)

// setupTelemetry starts the otel exporters configured in telemetry.json5, the returned
// function flushes them.
func setupTelemetry(ctx context.Context) func() {
	t, err := telemetry.SetupFromEnv(ctx, "slotwatch")
	if err != nil {
		slog.Warn("failed to setup telemetry, continuing without export", "err", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := t.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	}
}
