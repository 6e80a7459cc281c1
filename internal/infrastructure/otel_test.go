package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"routekit/internal/config"
)

func testTelemetryConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		ServiceName:    "routekit-test",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(testTelemetryConfig(), discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelStdoutTracing(t *testing.T) {
	cfg := testTelemetryConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.NotNil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
}

func TestOTelUnsupportedExporters(t *testing.T) {
	cfg := testTelemetryConfig()
	cfg.TraceExporter = "jaeger"
	_, err := InitializeOTel(cfg, discardLogger())
	assert.Error(t, err)

	cfg = testTelemetryConfig()
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, discardLogger())
	assert.Error(t, err)
}

// TestPrometheusEndpoint checks that recorded instruments are scraped
func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(testTelemetryConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	counter, err := providers.Meter.Int64Counter("routekit_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "routekit_test_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	cfg := testTelemetryConfig()
	cfg.TraceExporter = "stdout"
	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	assert.Len(t, TraceIDFromContext(ctx), 32)
	assert.Empty(t, TraceIDFromContext(context.Background()))

	RecordError(ctx, assert.AnError)
	RecordError(context.Background(), assert.AnError)
}

func TestSystemMetricsCollect(t *testing.T) {
	providers, err := InitializeOTel(testTelemetryConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	start := time.Now().Add(-time.Minute)
	sm, err := NewSystemMetrics(providers.Meter, start)
	require.NoError(t, err)

	stats := sm.Collect(context.Background())
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.CPUCount)
	assert.GreaterOrEqual(t, stats.ProcessUptime, time.Minute)
	assert.Equal(t, start, sm.StartTime())
}
