package slots

import (
	"context"
	"fmt"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("slotwatch.internal.slots")

const (
	report_reconciler_lookup  = "reconciler.lookup"
	report_reconciler_notify  = "reconciler.notify"
	report_reconciler_unknown = "reconciler.unknown"
	report_reconciler_new     = "reconciler.new"
)

// Outcome describes what a single reconciliation did.
type Outcome struct {
	// Slots is every slot that was scanned in this run.
	Slots []string
	// NewSlots are the scanned slots the store did not confirm, in scan order.
	NewSlots []string
	// Unknown are the slots the store could not answer for, they are part of NewSlots.
	Unknown []string
}

// Reconciler decides which scanned slots are new, announces them and records them.
type Reconciler struct {
	source   string
	store    Store
	notifier Notifier
	writer   BatchWriter
	tel      telemetry.API
}

// NewReconciler creates a Reconciler, source is the identifier of the scraped page that is
// put into notifications.
func NewReconciler(source string, store Store, notifier Notifier, tel telemetry.API) Reconciler {
	assert.NotEmptyStr(source)
	assert.NotNil(store)
	assert.NotNil(notifier)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("slots", tel)

	return Reconciler{
		source:   source,
		store:    store,
		notifier: notifier,
		writer:   NewBatchWriter(store, BatchLimit, tel),
		tel:      tel,
	}
}

// Difference returns the elements of scanned that are not in stored, in the order of scanned.
func Difference(scanned, stored []string) []string {
	existing := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		existing[id] = struct{}{}
	}
	out := []string{}
	for _, id := range scanned {
		if _, ok := existing[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Reconcile looks up the scanned slots, then notifies and persists the new ones.
//
// The notification is sent before persisting. If the process dies in between, the slots are
// still new on the next run and get announced again, a slot is never persisted without having
// been announced.
func (r Reconciler) Reconcile(ctx context.Context, slots []string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.Int("scanned", len(slots)),
	))
	defer span.End()

	out := Outcome{Slots: slots, NewSlots: []string{}}

	var lookup Lookup
	if len(slots) > 0 {
		var err error
		lookup, err = r.store.Lookup(ctx, slots)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
			r.tel.ReportBroken(report_reconciler_lookup, err, len(slots))
			return out, fmt.Errorf("%w: lookup: %w", ErrStore, err)
		}
	}
	if len(lookup.Unknown) > 0 {
		r.tel.ReportWarning(report_reconciler_unknown, lookup.Unknown)
		out.Unknown = lookup.Unknown
	}
	r.tel.ReportDebug("existing slots", len(lookup.Confirmed), lookup.Confirmed)

	out.NewSlots = Difference(slots, lookup.Confirmed)
	r.tel.ReportCount(report_reconciler_new, int64(len(out.NewSlots)))
	span.SetAttributes(attribute.Int("new", len(out.NewSlots)))
	if len(out.NewSlots) == 0 {
		return out, nil
	}

	err := r.notifier.Notify(ctx, Notification{
		Source: r.source,
		Slots:  out.NewSlots,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notify failed")
		r.tel.ReportBroken(report_reconciler_notify, err, out.NewSlots)
		return out, fmt.Errorf("%w: %w", ErrNotification, err)
	}
	r.tel.ReportDebug("notification sent", len(out.NewSlots))

	err = r.writer.Write(ctx, out.NewSlots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return out, err
	}
	r.tel.ReportDebug("new slots written", len(out.NewSlots))

	return out, nil
}
