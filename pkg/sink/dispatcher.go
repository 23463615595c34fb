package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/internal/logging"
	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
	"github.com/fyrsmithlabs/eventtrace/pkg/tracectx"
)

// Input is the record content shared by every sink in one dispatch.
type Input struct {
	Source       string
	Stage        string
	Message      string
	Level        severity.Level
	InvocationID string
}

// Outcome is what happened at one sink.
type Outcome struct {
	Sink     string
	Kind     Kind
	ID       string
	Gated    bool
	Disabled bool
	Err      *Error
}

// Result is the outcome of one dispatch.
type Result struct {
	// ID is the selected identifier, empty when no sink emitted.
	ID string
	// Outcomes holds one entry per configured sink, in configured order.
	Outcomes []Outcome
	// Err is a *DispatchError when every attempted sink failed.
	Err error
}

// Emitted reports whether any sink produced an id.
func (r Result) Emitted() bool { return r.ID != "" }

// Failures returns the sink-local errors of the dispatch.
func (r Result) Failures() []*Error {
	var errs []*Error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Dispatcher fans records out to a fixed set of sinks.
type Dispatcher struct {
	sinks          []Sink
	logger         *logging.Logger
	metrics        *Metrics
	records        metric.Int64Counter
	defaultTimeout time.Duration
	now            func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostics logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the Prometheus metrics. Defaults to DefaultMetrics().
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithMeter additionally records per-sink outcomes as an OpenTelemetry
// counter named eventtrace.dispatch.records.
func WithMeter(m metric.Meter) Option {
	return func(d *Dispatcher) {
		if m == nil {
			return
		}
		c, err := m.Int64Counter("eventtrace.dispatch.records",
			metric.WithDescription("Records handled per sink by outcome"))
		if err == nil {
			d.records = c
		}
	}
}

// WithDefaultTimeout sets the timeout for sinks that do not carry their own.
func WithDefaultTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.defaultTimeout = t
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher over sinks. Their order is the
// fallback output precedence.
func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sinks:          sinks,
		logger:         logging.NewNop(),
		defaultTimeout: config.DefaultTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = DefaultMetrics()
	}
	return d
}

// Sinks returns the configured sinks.
func (d *Dispatcher) Sinks() []Sink {
	return d.sinks
}

// Dispatch emits in to every enabled sink whose minimum level it meets and
// returns once all of them finished and flushed.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input, parentID string) Result {
	outcomes := make([]Outcome, len(d.sinks))

	var g errgroup.Group
	for i, s := range d.sinks {
		outcomes[i] = Outcome{Sink: s.Name(), Kind: s.Kind()}

		if !s.Enabled() {
			outcomes[i].Disabled = true
			continue
		}
		if !severity.ShouldEmit(in.Level, s.MinLevel()) {
			outcomes[i].Gated = true
			d.count(ctx, s.Name(), OutcomeGated)
			d.logger.Debug(ctx, "record below sink minimum level",
				zap.String("sink", s.Name()),
				zap.Stringer("level", in.Level),
				zap.Stringer("min_level", s.MinLevel()))
			continue
		}

		g.Go(func() error {
			id, err := d.run(ctx, s, in, parentID)
			outcomes[i].ID = id
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Outcomes: outcomes, ID: selectID(outcomes)}

	failures := res.Failures()
	if res.ID == "" && len(failures) > 0 {
		res.Err = &DispatchError{Errors: failures}
		d.metrics.Escalations.Inc()
	}
	return res
}

// selectID prefers the local logger's id, then the first id in sink order.
func selectID(outcomes []Outcome) string {
	for _, o := range outcomes {
		if o.Kind == KindLocalLogger && o.ID != "" {
			return o.ID
		}
	}
	for _, o := range outcomes {
		if o.ID != "" {
			return o.ID
		}
	}
	return ""
}

type emitResult struct {
	id  string
	err error
}

// run emits to s under its timeout, recovering panics.
func (d *Dispatcher) run(ctx context.Context, s Sink, in Input, parentID string) (string, *Error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, d.timeout(s))
	defer cancel()

	done := make(chan emitResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- emitResult{err: fmt.Errorf("sink panicked: %v", r)}
			}
		}()
		id, err := d.emit(sctx, s, in, parentID)
		if err == nil {
			if ferr := s.Flush(sctx); ferr != nil {
				err = fmt.Errorf("flush: %w", ferr)
			}
		}
		done <- emitResult{id: id, err: err}
	}()

	var r emitResult
	select {
	case r = <-done:
	case <-sctx.Done():
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			r.err = ErrSinkTimeout
		} else {
			r.err = sctx.Err()
		}
	}
	d.metrics.Duration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

	if r.err == nil {
		d.count(ctx, s.Name(), OutcomeEmitted)
		return r.id, nil
	}

	outcome := OutcomeFailed
	if errors.Is(r.err, ErrSinkTimeout) {
		outcome = OutcomeTimeout
	}
	d.count(ctx, s.Name(), outcome)
	d.logger.Warn(ctx, "sink emission failed",
		zap.String("sink", s.Name()),
		zap.Stringer("kind", s.Kind()),
		zap.Error(r.err))
	return "", &Error{Sink: s.Name(), Kind: s.Kind(), Err: r.err}
}

// emit sends the records for one sink. With a parent and hierarchy support
// a Dependency record is emitted first and the Trace record hangs off it.
func (d *Dispatcher) emit(ctx context.Context, s Sink, in Input, parentID string) (string, error) {
	now := d.now()
	rec := Record{
		Kind:         RecordTrace,
		Source:       in.Source,
		Stage:        in.Stage,
		Message:      in.Message,
		Level:        in.Level,
		Timestamp:    now,
		Success:      true,
		InvocationID: in.InvocationID,
	}

	traceParent := parentID
	if parentID != "" && s.SupportsHierarchy() {
		dep := rec
		dep.Kind = RecordDependency
		dep.ParentID = parentID
		dep.NewID = tracectx.NewChild(parentID)

		depID, err := s.Emit(ctx, dep)
		if err != nil {
			return "", fmt.Errorf("dependency record: %w", err)
		}
		if err := checkID(depID, parentID); err != nil {
			return "", fmt.Errorf("dependency record: %w", err)
		}
		traceParent = depID
	}

	rec.ParentID = traceParent
	rec.NewID = tracectx.NewChild(traceParent)
	id, err := s.Emit(ctx, rec)
	if err != nil {
		return "", err
	}
	if err := checkID(id, traceParent); err != nil {
		return "", err
	}
	if err := checkID(id, parentID); err != nil {
		return "", err
	}
	return id, nil
}

func checkID(id, parent string) error {
	if id == "" {
		return ErrEmptyID
	}
	if parent != "" && id == parent {
		return ErrParentEcho
	}
	return nil
}

func (d *Dispatcher) timeout(s Sink) time.Duration {
	if t, ok := s.(interface{ Timeout() time.Duration }); ok && t.Timeout() > 0 {
		return t.Timeout()
	}
	return d.defaultTimeout
}

func (d *Dispatcher) count(ctx context.Context, sinkName, outcome string) {
	d.metrics.Records.WithLabelValues(sinkName, outcome).Inc()
	if d.records != nil {
		d.records.Add(ctx, 1, metric.WithAttributes(
			attribute.String("sink", sinkName),
			attribute.String("outcome", outcome),
		))
	}
}
