// Package notify contains the notifiers that announce newly discovered slots, the
// backends with external dependencies live in the subpackages.
package notify

import (
	"context"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
)

const report_log_notify = "log.notify"

// LogNotifier reports every notification through the telemetry API instead of sending it
// anywhere, it is the default when no notification backend is configured.
type LogNotifier struct {
	tel telemetry.API
}

func NewLogNotifier(tel telemetry.API) LogNotifier {
	assert.NotNil(tel)
	return LogNotifier{tel: telemetry.NewScopedAPI("notify", tel)}
}

func (n LogNotifier) Notify(ctx context.Context, notification slots.Notification) error {
	n.tel.ReportWarning(report_log_notify, notification.Subject(), notification.Message())
	return nil
}
