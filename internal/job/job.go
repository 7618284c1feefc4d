// Package job runs one complete scrape: fetch, scan, reconcile and report.
package job

import (
	"context"
	"encoding/json"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/scanner"
	"slotwatch/internal/slots"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("slotwatch.internal.job")

const (
	report_runner_run    = "runner.run"
	report_runner_runid  = "runner.run_id"
	report_runner_scan   = "runner.scan"
	report_runner_scrape = "runner.scrape"
)

// Scraper returns the text nodes of a page in document order.
type Scraper interface {
	Url() string
	Scrape(ctx context.Context) ([]string, error)
}

// Result is what a run reports to whoever triggered it. A failed run is still a result, the
// error is carried as data.
type Result struct {
	Slots []string
	Err   error
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err.Error()})
	}
	slots := r.Slots
	if slots == nil {
		slots = []string{}
	}
	return json.Marshal(struct {
		Slots []string `json:"slots"`
	}{Slots: slots})
}

type Runner struct {
	scraper  Scraper
	store    slots.Store
	notifier slots.Notifier
	tel      telemetry.API

	scannedCounter metric.Int64Counter
	newCounter     metric.Int64Counter
}

func NewRunner(scraper Scraper, store slots.Store, notifier slots.Notifier, tel telemetry.API) Runner {
	assert.NotNil(scraper)
	assert.NotNil(store)
	assert.NotNil(notifier)
	assert.NotNil(tel)

	meter := otel.Meter("slotwatch.internal.job")
	scannedCounter, _ := meter.Int64Counter(
		"slotwatch.slots.scanned",
		metric.WithDescription("slots found on the page"),
	)
	newCounter, _ := meter.Int64Counter(
		"slotwatch.slots.new",
		metric.WithDescription("slots that were not in the store"),
	)

	return Runner{
		scraper:        scraper,
		store:          store,
		notifier:       notifier,
		tel:            telemetry.NewScopedAPI("job", tel),
		scannedCounter: scannedCounter,
		newCounter:     newCounter,
	}
}

func newRunId(tel telemetry.API) string {
	id, err := random.String(8)
	if err != nil {
		tel.ReportWarning(report_runner_runid, err)
		return "unknown"
	}
	return id
}

// Scan fetches the page and returns its slots without touching the store.
func (r Runner) Scan(ctx context.Context) ([]string, error) {
	return r.scan(ctx, r.tel)
}

func (r Runner) scan(ctx context.Context, tel telemetry.API) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Scan")
	defer span.End()

	texts, err := r.scraper.Scrape(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		tel.ReportBroken(report_runner_scrape, err)
		return nil, err
	}
	found := scanner.Scan(texts)
	tel.ReportDebug(report_runner_scan, len(texts), len(found))
	span.SetAttributes(attribute.Int("slots", len(found)))
	return found, nil
}

// Run performs one scrape and reconciliation, it never fails. Errors are reported and
// embedded in the returned Result.
func (r Runner) Run(ctx context.Context) Result {
	runId := newRunId(r.tel)
	tel := telemetry.WithParams(r.tel, "run", runId)

	ctx, span := tracer.Start(ctx, "Run", trace.WithAttributes(
		attribute.String("run_id", runId),
		attribute.String("source", r.scraper.Url()),
	))
	defer span.End()

	found, err := r.scan(ctx, tel)
	if err != nil {
		return Result{Err: err}
	}
	r.scannedCounter.Add(ctx, int64(len(found)))

	reconciler := slots.NewReconciler(r.scraper.Url(), r.store, r.notifier, tel)
	outcome, err := reconciler.Reconcile(ctx, found)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		tel.ReportBroken(report_runner_run, err)
		return Result{Err: err}
	}
	r.newCounter.Add(ctx, int64(len(outcome.NewSlots)))
	tel.ReportDebug(report_runner_run, len(outcome.Slots), len(outcome.NewSlots))

	return Result{Slots: outcome.Slots}
}
