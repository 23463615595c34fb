package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fieldMap(fields []zap.Field) map[string]zap.Field {
	m := make(map[string]zap.Field, len(fields))
	for _, f := range fields {
		m[f.Key] = f
	}
	return m
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Span(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := fieldMap(ContextFields(ctx))
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"].String)
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"].String)
	_, sampled := fields["trace_sampled"]
	assert.True(t, sampled)
}

func TestContextFields_InvocationAndParent(t *testing.T) {
	ctx := WithInvocationID(context.Background(), "inv-1")
	ctx = WithTraceParent(ctx, "abc123")

	fields := fieldMap(ContextFields(ctx))
	assert.Equal(t, "inv-1", fields["invocation.id"].String)
	assert.Equal(t, "abc123", fields["trace.parent"].String)
}

func TestWithHelpers_IgnoreEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithInvocationID(ctx, ""))
	assert.Equal(t, ctx, WithTraceParent(ctx, ""))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(ctx, "stored")
	tl.AssertLogged(t, zapcore.InfoLevel, "stored")
}
