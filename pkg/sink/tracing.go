package sink

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/eventtrace/internal/telemetry"
	"github.com/fyrsmithlabs/eventtrace/pkg/tracectx"
)

const instrumentationName = "github.com/fyrsmithlabs/eventtrace/pkg/sink"

// Span attribute keys.
const (
	AttrSource            = attribute.Key("eventtrace.source")
	AttrStage             = attribute.Key("eventtrace.stage")
	AttrSeverity          = attribute.Key("severity")
	AttrRecordKind        = attribute.Key("eventtrace.record.kind")
	AttrDependencyType    = attribute.Key("dependency.type")
	AttrDependencyTarget  = attribute.Key("dependency.target")
	AttrDependencySuccess = attribute.Key("dependency.success")
	AttrCorrelationParent = attribute.Key("correlation.parent")
	AttrInvocationID      = attribute.Key("invocation.id")
)

// TracingSink records spans through an OpenTelemetry TracerProvider. Without
// an injected provider it builds one lazily from the connection string.
type TracingSink struct {
	base

	telemetryOpts []telemetry.Option

	once     sync.Once
	provider trace.TracerProvider
	tel      *telemetry.Telemetry
	initErr  error
}

// TracingOption configures a TracingSink.
type TracingOption func(*TracingSink)

// WithTracerProvider makes the sink use tp instead of its connection string.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(s *TracingSink) {
		s.provider = tp
	}
}

// WithTelemetryOptions passes options to telemetry.New when the provider is
// built from the connection string.
func WithTelemetryOptions(opts ...telemetry.Option) TracingOption {
	return func(s *TracingSink) {
		s.telemetryOpts = append(s.telemetryOpts, opts...)
	}
}

// NewTracingSink creates a TracingSink.
func NewTracingSink(cfg Config, opts ...TracingOption) *TracingSink {
	s := &TracingSink{base: base{cfg: cfg}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TracingSink) Kind() Kind { return KindExternalTracing }

func (s *TracingSink) SupportsHierarchy() bool { return true }

func (s *TracingSink) tracer(ctx context.Context) (trace.Tracer, error) {
	s.once.Do(func() {
		if s.provider != nil {
			return
		}
		if !s.cfg.Connection.IsSet() {
			s.initErr = fmt.Errorf("%w: no tracing connection string", ErrNotConfigured)
			return
		}
		tcfg, err := telemetry.ParseConnectionString(s.cfg.Connection.Value())
		if err != nil {
			s.initErr = fmt.Errorf("%w: %w", ErrNotConfigured, err)
			return
		}
		tel, err := telemetry.New(ctx, tcfg, s.telemetryOpts...)
		if err != nil {
			s.initErr = fmt.Errorf("%w: %w", ErrNotConfigured, err)
			return
		}
		if reason := tel.DegradedReason(); reason != nil {
			s.initErr = reason
			return
		}
		s.tel = tel
		s.provider = tel.TracerProvider()
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.provider.Tracer(instrumentationName), nil
}

// Emit records rec as a span and returns its traceparent. A Dependency
// record becomes a zero-length span named after the stage with target set
// to the source.
func (s *TracingSink) Emit(ctx context.Context, rec Record) (string, error) {
	tracer, err := s.tracer(ctx)
	if err != nil {
		return "", err
	}

	attrs := []attribute.KeyValue{
		AttrSource.String(rec.Source),
		AttrStage.String(rec.Stage),
		AttrSeverity.String(rec.Level.BackendName()),
		AttrRecordKind.String(rec.Kind.String()),
	}
	if rec.InvocationID != "" {
		attrs = append(attrs, AttrInvocationID.String(rec.InvocationID))
	}

	opts := []trace.SpanStartOption{trace.WithTimestamp(rec.Timestamp)}
	spanCtx := ctx
	if sc, ok := tracectx.Remote(rec.ParentID); ok {
		spanCtx = trace.ContextWithRemoteSpanContext(ctx, sc)
	} else {
		opts = append(opts, trace.WithNewRoot())
		if rec.ParentID != "" {
			attrs = append(attrs, AttrCorrelationParent.String(rec.ParentID))
		}
	}

	if rec.Kind == RecordDependency {
		attrs = append(attrs,
			AttrDependencyType.String("Custom"),
			AttrDependencyTarget.String(rec.Source),
			AttrDependencySuccess.Bool(rec.Success),
		)
		opts = append(opts, trace.WithSpanKind(trace.SpanKindClient))
	}
	opts = append(opts, trace.WithAttributes(attrs...))

	_, span := tracer.Start(spanCtx, rec.Stage, opts...)
	if rec.Kind == RecordTrace {
		span.AddEvent(rec.Message, trace.WithTimestamp(rec.Timestamp),
			trace.WithAttributes(AttrSeverity.String(rec.Level.BackendName())))
	}
	if !rec.Success {
		span.SetStatus(codes.Error, rec.Message)
	}
	span.End(trace.WithTimestamp(rec.Timestamp))

	return tracectx.Format(span.SpanContext()), nil
}

// Flush exports pending spans.
func (s *TracingSink) Flush(ctx context.Context) error {
	if s.tel != nil {
		return s.tel.ForceFlush(ctx)
	}
	if f, ok := s.provider.(interface{ ForceFlush(context.Context) error }); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// Close shuts down a provider built from the connection string.
func (s *TracingSink) Close(ctx context.Context) error {
	if s.tel == nil {
		return nil
	}
	return s.tel.Shutdown(ctx)
}
