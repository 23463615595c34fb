package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/internal/telemetry"
	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
	"github.com/fyrsmithlabs/eventtrace/pkg/tracectx"
)

func tracingConfig() Config {
	return Config{Name: config.SinkTracing, Enabled: true, MinLevel: severity.Information, Timeout: config.DefaultTimeout}
}

func TestTracingSink_ChildOfW3CParent(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	s := NewTracingSink(tracingConfig(), WithTracerProvider(tt.TracerProvider()))
	d, _ := newTestDispatcher([]Sink{s})

	res := d.Dispatch(context.Background(), input(severity.Warning), parent)
	require.NoError(t, res.Err)

	spans := tt.Spans()
	require.Len(t, spans, 2)
	dep, child := spans[0], spans[1]

	parentSC, err := tracectx.Parse(parent)
	require.NoError(t, err)

	assert.Equal(t, "PostOperation", dep.Name())
	assert.Equal(t, trace.SpanKindClient, dep.SpanKind())
	assert.Equal(t, parentSC.TraceID(), dep.SpanContext().TraceID())
	assert.Equal(t, parentSC.SpanID(), dep.Parent().SpanID())
	assert.Equal(t, dep.StartTime(), dep.EndTime(), "dependency has zero duration")

	assert.Equal(t, dep.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, parentSC.TraceID(), child.SpanContext().TraceID())
	require.Len(t, child.Events(), 1)
	assert.Equal(t, "Invoice approved", child.Events()[0].Name)

	assert.Equal(t, tracectx.Format(child.SpanContext()), res.ID)

	tt.AssertSpanAttribute(t, "PostOperation", "dependency.type", "Custom")
	tt.AssertSpanAttribute(t, "PostOperation", "dependency.target", "Billing")
	tt.AssertSpanAttribute(t, "PostOperation", "dependency.success", true)
	tt.AssertSpanAttribute(t, "PostOperation", "severity", "Warning")
}

func TestTracingSink_RootSpan(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	s := NewTracingSink(tracingConfig(), WithTracerProvider(tt.TracerProvider()))
	d, _ := newTestDispatcher([]Sink{s})

	ctx, outer := tt.Tracer("host").Start(context.Background(), "host-operation")
	res := d.Dispatch(ctx, input(severity.Information), "")
	outer.End()
	require.NoError(t, res.Err)

	span := tt.SpanByName("PostOperation")
	require.NotNil(t, span)
	assert.False(t, span.Parent().IsValid(), "root record ignores spans on the context")
	assert.Equal(t, tracectx.Format(span.SpanContext()), res.ID)
}

func TestTracingSink_OpaqueParent(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	s := NewTracingSink(tracingConfig(), WithTracerProvider(tt.TracerProvider()))
	d, _ := newTestDispatcher([]Sink{s})

	res := d.Dispatch(context.Background(), input(severity.Information), "abc123")
	require.NoError(t, res.Err)
	assert.NotEqual(t, "abc123", res.ID)

	spans := tt.Spans()
	require.Len(t, spans, 2)
	assert.False(t, spans[0].Parent().IsValid())
	tt.AssertSpanAttribute(t, "PostOperation", "correlation.parent", "abc123")
	assert.Equal(t, spans[0].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestTracingSink_GUIDParentKeepsTrace(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	s := NewTracingSink(tracingConfig(), WithTracerProvider(tt.TracerProvider()))
	d, _ := newTestDispatcher([]Sink{s})

	guid := "8f14e45f-ceea-467f-a0e6-4b3c2a1d9e10"
	res := d.Dispatch(context.Background(), input(severity.Information), guid)
	require.NoError(t, res.Err)
	assert.Equal(t, "8f14e45fceea467fa0e64b3c2a1d9e10", tracectx.TraceID(res.ID))
}

func TestTracingSink_NotConfigured(t *testing.T) {
	s := NewTracingSink(tracingConfig())
	_, err := s.Emit(context.Background(), Record{Stage: "x", NewID: "y"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	// the failure is sticky for the sink's lifetime
	_, err = s.Emit(context.Background(), Record{Stage: "x", NewID: "y"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, s.Close(context.Background()))
}

func TestTracingSink_BadConnectionString(t *testing.T) {
	for _, conn := range []string{"Colour=blue", "ServiceName=crm-plugins;Protocol=grpc"} {
		t.Run(conn, func(t *testing.T) {
			cfg := tracingConfig()
			cfg.Connection = config.Secret(conn)
			s := NewTracingSink(cfg)

			_, err := s.Emit(context.Background(), Record{Stage: "x", NewID: "y"})
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.ErrorIs(t, err, telemetry.ErrInvalidConnectionString)
		})
	}
}

func TestTracingSink_FromConnectionString(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	cfg := tracingConfig()
	cfg.Connection = "Endpoint=localhost:4317;Insecure=true;ServiceName=crm-plugins"
	s := NewTracingSink(cfg, WithTelemetryOptions(telemetry.WithTraceExporter(exporter)))
	d, _ := newTestDispatcher([]Sink{s})

	res := d.Dispatch(context.Background(), input(severity.Error), parent)
	require.NoError(t, res.Err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	name, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "crm-plugins", name.AsString())

	require.NoError(t, s.Close(context.Background()))
}

func TestTracingSink_NoopProviderEchoesParent(t *testing.T) {
	s := NewTracingSink(tracingConfig(), WithTracerProvider(noop.NewTracerProvider()))
	d, _ := newTestDispatcher([]Sink{s})

	res := d.Dispatch(context.Background(), input(severity.Information), parent)
	assert.Empty(t, res.ID)
	assert.ErrorIs(t, res.Err, ErrParentEcho)

	res = d.Dispatch(context.Background(), input(severity.Information), "")
	assert.ErrorIs(t, res.Err, ErrEmptyID)
}
