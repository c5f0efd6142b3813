package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shwndea/automated-padc-processor/internal/infrastructure"
)

const (
	TracerName = "ada.operations"
)

// Tracer records spans and audit metrics around runs and steps. A nil *Tracer
// records nothing.
type Tracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.AuditMetrics
}

// NewTracer creates a tracer backed by the global tracer provider and metrics.
// metrics may be nil.
func NewTracer(metrics *infrastructure.AuditMetrics) *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName), metrics: metrics}
}

// Metrics exposes the audit instruments, nil when metrics are off.
func (t *Tracer) Metrics() *infrastructure.AuditMetrics {
	if t == nil {
		return nil
	}
	return t.metrics
}

// StartRun opens the span covering a whole run.
func (t *Tracer) StartRun(ctx context.Context, operationID, input string) (context.Context, trace.Span) {
	ctx = infrastructure.EnsureTraceID(infrastructure.WithRunID(ctx, operationID))
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "audit.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("audit.input", input),
		),
	)
}

// EndRun closes the run span and records run metrics.
func (t *Tracer) EndRun(ctx context.Context, span trace.Span, audit *Audit, duration time.Duration, err error) {
	if t == nil {
		return
	}
	rows := 0
	if audit != nil {
		rows = len(audit.Raw)
		span.SetAttributes(
			attribute.Int("audit.months", len(audit.Months)),
			attribute.Int("audit.values", rows),
			attribute.Bool("audit.cache_hit", audit.CacheHit),
		)
		if audit.CacheHit {
			t.metrics.RecordCacheHit(ctx)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	t.metrics.RecordRun(ctx, "operations", duration, rows, err)
}

// StartStep opens a child span for one step.
func (t *Tracer) StartStep(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "audit.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// EndStep closes a step span and records its duration.
func (t *Tracer) EndStep(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	if t == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	t.metrics.RecordStep(ctx, stepID, duration, err == nil)
}

// TrackActive adjusts the active run gauge.
func (t *Tracer) TrackActive(ctx context.Context, delta int64) {
	if t == nil {
		return
	}
	t.metrics.TrackActive(ctx, delta)
}
