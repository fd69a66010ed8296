package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Document outcomes recorded by the ingestion pipeline
const (
	OutcomeIngested    = "ingested"
	OutcomeSkipped     = "skipped"
	OutcomeUnsupported = "unsupported"
	OutcomeDuplicate   = "duplicate"
	OutcomeFailed      = "failed"
)

// Metrics holds the ingestion and query instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Documents       metric.Int64Counter
	CycleDuration   metric.Float64Histogram
	SearchDuration  metric.Float64Histogram
	ReconcileResult metric.Int64Counter
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	documents, err := meter.Int64Counter(
		"neurosearch.ingest.documents",
		metric.WithDescription("Source objects handled by the ingestion pipeline, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"neurosearch.ingest.cycle.duration",
		metric.WithDescription("Poll cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"neurosearch.search.duration",
		metric.WithDescription("Search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	reconcile, err := meter.Int64Counter(
		"neurosearch.reconcile.entries",
		metric.WithDescription("Recovery cache entries handled by reconciliation, by result"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Documents:       documents,
		CycleDuration:   cycleDuration,
		SearchDuration:  searchDuration,
		ReconcileResult: reconcile,
	}, nil
}

// RecordDocument counts one source object with its outcome and stage reached
func (m *Metrics) RecordDocument(ctx context.Context, outcome, stage string) {
	if m == nil {
		return
	}
	m.Documents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", stage),
	))
}

// RecordCycle records a finished poll cycle
func (m *Metrics) RecordCycle(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Record(ctx, d.Seconds())
}

// RecordSearch records a finished search; kind is empty on success
func (m *Metrics) RecordSearch(ctx context.Context, d time.Duration, kind string) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = kind
	}
	m.SearchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordReconcile adds n entries with the given result
func (m *Metrics) RecordReconcile(ctx context.Context, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ReconcileResult.Add(ctx, int64(n), metric.WithAttributes(attribute.String("result", result)))
}
