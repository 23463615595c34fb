// Package handler runs the correlation pipeline for one business event:
// defaults, parent resolution, dispatch and output, behind an error
// boundary that never lets a telemetry failure reach the host.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/internal/logging"
	"github.com/fyrsmithlabs/eventtrace/internal/telemetry"
	"github.com/fyrsmithlabs/eventtrace/pkg/event"
	"github.com/fyrsmithlabs/eventtrace/pkg/output"
	"github.com/fyrsmithlabs/eventtrace/pkg/sink"
	"github.com/fyrsmithlabs/eventtrace/pkg/tracectx"
)

// ErrorPrefix starts every value written by the error boundary.
const ErrorPrefix = "ERROR - "

var errNilEvent = errors.New("no event context supplied")

// Handler is one registered handler instance. It is safe for concurrent use.
type Handler struct {
	cfg        *config.HandlerConfig
	configErr  error
	dispatcher *sink.Dispatcher
	logger     *logging.Logger
	newID      func() string
}

type options struct {
	logger         *logging.Logger
	tracerProvider trace.TracerProvider
	telemetryOpts  []telemetry.Option
	sinks          []sink.Sink
	metrics        *sink.Metrics
	meter          metric.Meter
	newID          func() string
}

// Option configures a Handler.
type Option func(*options)

// WithLogger sets the logger used for diagnostics and by the logger sink.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider makes the tracing sink use tp instead of building a
// provider from its connection string.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithTelemetryOptions passes options to the tracing sink's provider.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(o *options) { o.telemetryOpts = append(o.telemetryOpts, opts...) }
}

// WithSinks replaces the configured sinks.
func WithSinks(sinks ...sink.Sink) Option {
	return func(o *options) { o.sinks = sinks }
}

// WithMetrics sets the dispatcher's Prometheus metrics.
func WithMetrics(m *sink.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMeter records dispatch outcomes on an OpenTelemetry meter as well.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithInvocationIDs overrides invocation id generation.
func WithInvocationIDs(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// New builds a Handler from the unsecured and secured configuration blobs.
// It never fails: a configuration problem is logged and the safe defaults
// apply. ConfigError reports it.
func New(unsecure, secure string, opts ...Option) *Handler {
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	cfg, err := config.ParseHandlerConfig(unsecure, secure)
	if err != nil {
		o.logger.Warn(context.Background(), "handler configuration ignored, using defaults",
			zap.Error(err))
	}

	sinks := o.sinks
	if sinks == nil {
		sinks = buildSinks(cfg, &o)
	}

	dopts := []sink.Option{
		sink.WithLogger(o.logger),
		sink.WithMetrics(o.metrics),
		sink.WithMeter(o.meter),
	}

	return &Handler{
		cfg:        cfg,
		configErr:  err,
		dispatcher: sink.NewDispatcher(sinks, dopts...),
		logger:     o.logger,
		newID:      o.newID,
	}
}

func buildSinks(cfg *config.HandlerConfig, o *options) []sink.Sink {
	sinks := make([]sink.Sink, 0, len(config.SinkNames))
	for _, name := range config.SinkNames {
		sc := sink.ConfigFrom(name, cfg)
		switch name {
		case config.SinkLogger:
			sinks = append(sinks, sink.NewLoggerSink(sc, o.logger))
		case config.SinkTracing:
			var topts []sink.TracingOption
			if o.tracerProvider != nil {
				topts = append(topts, sink.WithTracerProvider(o.tracerProvider))
			}
			if len(o.telemetryOpts) > 0 {
				topts = append(topts, sink.WithTelemetryOptions(o.telemetryOpts...))
			}
			sinks = append(sinks, sink.NewTracingSink(sc, topts...))
		case config.SinkBus:
			sinks = append(sinks, sink.NewBusSink(sc))
		}
	}
	return sinks
}

// Config returns the resolved configuration.
func (h *Handler) Config() *config.HandlerConfig { return h.cfg }

// ConfigError returns the configuration problem found by New, if any.
func (h *Handler) ConfigError() error { return h.configErr }

// Execute runs the pipeline for ev and writes exactly one value into
// params: the new record id, the resolved parent when every sink was
// gated out, or an ERROR value. It never panics and never returns an
// error to the caller.
func (h *Handler) Execute(ctx context.Context, ev *event.Context, params output.Params) {
	invocationID := h.newID()
	ctx = logging.WithInvocationID(ctx, invocationID)

	defer func() {
		if r := recover(); r != nil {
			h.fail(ctx, params, &panicError{value: r})
		}
	}()

	id, err := h.run(ctx, ev, invocationID)
	if err != nil {
		h.fail(ctx, params, err)
		return
	}

	if id == "" && h.cfg.Append {
		return
	}
	output.Write(params, h.cfg.OutputField, id, h.cfg.Append)
}

func (h *Handler) run(ctx context.Context, ev *event.Context, invocationID string) (string, error) {
	if ev == nil {
		return "", errNilEvent
	}
	if h.cfg.RequireFields {
		if err := ev.ValidateRequired(); err != nil {
			return "", err
		}
	}

	defaults, tag := event.ComputeDefaults(ev)
	explicit, _ := ev.Param(event.ParamTraceParent)
	parent := tracectx.Resolve(explicit, tag)
	ctx = logging.WithTraceParent(ctx, parent)

	res := h.dispatcher.Dispatch(ctx, sink.Input{
		Source:       defaults.Source,
		Stage:        defaults.Stage,
		Message:      defaults.Message,
		Level:        defaults.Level,
		InvocationID: invocationID,
	}, parent)
	if res.Err != nil {
		return "", res.Err
	}
	if !res.Emitted() {
		// Nothing emitted: hand the parent through so the chain survives.
		h.logger.Debug(ctx, "no sink emitted, passing parent through")
		return parent, nil
	}
	return res.ID, nil
}

// fail writes the boundary value, always overwriting.
func (h *Handler) fail(ctx context.Context, params output.Params, err error) {
	kind := errorKind(err)
	h.logger.Error(ctx, "telemetry pipeline failed",
		zap.String("error.kind", kind),
		zap.Error(err))
	output.Write(params, h.cfg.OutputField, fmt.Sprintf("%s%s: %v", ErrorPrefix, kind, err), false)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

func errorKind(err error) string {
	var (
		verr *event.ValidationError
		derr *sink.DispatchError
		perr *panicError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &derr):
		return "dispatch"
	case errors.As(err, &perr):
		return "panic"
	default:
		return "internal"
	}
}

// Close releases sink clients. The handler must not be used afterwards.
func (h *Handler) Close(ctx context.Context) error {
	var errs []error
	for _, s := range h.dispatcher.Sinks() {
		c, ok := s.(interface{ Close(context.Context) error })
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing sink %s: %w", s.Name(), err))
		}
	}
	if err := h.logger.Sync(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
