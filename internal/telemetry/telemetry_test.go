package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithInMemoryExporters(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	metrics := newDiscardMetricExporter()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.ExportInterval = config.Duration(time.Hour)

	tel, err := New(ctx, cfg, WithTraceExporter(spans), WithMetricExporter(metrics))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)
	assert.NoError(t, tel.DegradedReason())

	_, span := tel.Tracer("test").Start(ctx, "dispatch")
	span.End()

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "dispatch", got[0].Name)
	name, ok := got[0].Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "eventtrace", name.AsString())

	counter, err := tel.Meter("test").Int64Counter("records")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	require.NoError(t, tel.ForceFlush(ctx))
	assert.Equal(t, 1, metrics.exported)
	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.IsEnabled())
}

func TestNew_SamplingRateZeroDropsRootSpans(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false
	cfg.Sampling.Rate = 0

	tel, err := New(ctx, cfg, WithTraceExporter(spans))
	require.NoError(t, err)

	_, span := tel.Tracer("test").Start(ctx, "dropped")
	span.End()
	assert.Empty(t, spans.GetSpans())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.TracerProvider()
		_ = tel.MeterProvider()
		_ = tel.IsEnabled()
		_ = tel.DegradedReason()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
		tel.Install()
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestTelemetry_SetDegradedKeepsFirstReason(t *testing.T) {
	tel := &Telemetry{}
	tel.setDegraded("first: %w", assert.AnError)
	tel.setDegraded("second")

	assert.True(t, tel.Health().Degraded)
	assert.ErrorIs(t, tel.DegradedReason(), assert.AnError)
}

func TestTestTelemetry(t *testing.T) {
	ctx := context.Background()
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(ctx, "test-span")
	span.End()
	tt.AssertSpanExists(t, "test-span")
	assert.Nil(t, tt.SpanByName("missing"))

	counter, err := tt.Meter("test").Int64Counter("records")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3)

	total, err := tt.MetricReader.Sum(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, tt.MetricReader.Metrics(), 1)
}

type discardMetricExporter struct {
	exported int
}

func newDiscardMetricExporter() *discardMetricExporter {
	return &discardMetricExporter{}
}

func (e *discardMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *discardMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *discardMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	e.exported++
	return nil
}

func (e *discardMetricExporter) ForceFlush(context.Context) error { return nil }

func (e *discardMetricExporter) Shutdown(context.Context) error { return nil }
