package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInitializeOTelPrometheus(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "none"

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)

	metrics, err := CreateAuditMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.TrackActive(ctx, 1)
	metrics.RecordStep(ctx, "extract", 20*time.Millisecond, true)
	metrics.RecordRun(ctx, "cli", 150*time.Millisecond, 42, nil)
	metrics.RecordRun(ctx, "cli", time.Millisecond, 0, errors.New("boom"))
	metrics.RecordCacheHit(ctx)
	metrics.TrackActive(ctx, -1)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "audit_runs_total")
	assert.Contains(t, body, `status="failure"`)
	assert.Contains(t, body, "audit_cache_hits_total")
}

func TestInitializeOTelStdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	cfg := &OTelConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "none",
		SampleRatio:    1,
		TraceWriter:    &buf,
	}

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "audit")
	traceID := TraceIDFromContext(ctx)
	span.End()

	assert.Len(t, traceID, 32)
	require.NoError(t, providers.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), traceID)
}

func TestInitializeOTelRejectsUnknownExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{TraceExporter: "zipkin"}, quietLogger())
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{MetricExporter: "statsd"}, quietLogger())
	assert.Error(t, err)
}

func TestTraceIDFromContextFallsBackToTraceHeader(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-123")
	assert.Equal(t, "req-123", TraceIDFromContext(ctx))
}

func TestNilAuditMetricsAreNoOps(t *testing.T) {
	var m *AuditMetrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), "cli", time.Second, 1, nil)
		m.RecordStep(context.Background(), "scan", time.Second, true)
		m.TrackActive(context.Background(), 1)
		m.RecordCacheHit(context.Background())
	})
}
