// Package tracectx resolves the parent correlation id of an invocation and
// mints W3C traceparent identifiers.
//
// Identifiers have the form 00-<32 hex trace id>-<16 hex span id>-<2 hex
// flags>. A parent that is not a traceparent but parses as a UUID (a GUID
// correlation tag from an older handler) is mapped onto the trace id so the
// chain survives; any other parent cannot be continued.
package tracectx

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidTraceParent is returned by Parse for anything that is not a
// valid W3C traceparent.
var ErrInvalidTraceParent = errors.New("invalid traceparent")

const traceparentHeader = "traceparent"

var propagator = propagation.TraceContext{}

// Resolve picks the parent id: explicit when non-empty, then inherited when
// non-empty, else "" meaning a new root. It never invents an id.
func Resolve(explicit, inherited string) string {
	if explicit != "" {
		return explicit
	}
	if inherited != "" {
		return inherited
	}
	return ""
}

// Parse decodes a W3C traceparent into a remote span context.
func Parse(s string) (trace.SpanContext, error) {
	carrier := propagation.MapCarrier{traceparentHeader: strings.TrimSpace(s)}
	sc := trace.SpanContextFromContext(propagator.Extract(context.Background(), carrier))
	if !sc.IsValid() {
		return trace.SpanContext{}, ErrInvalidTraceParent
	}
	return sc, nil
}

// Format encodes sc as a W3C traceparent, or "" when sc is invalid.
func Format(sc trace.SpanContext) string {
	carrier := propagation.MapCarrier{}
	propagator.Inject(trace.ContextWithRemoteSpanContext(context.Background(), sc), carrier)
	return carrier.Get(traceparentHeader)
}

// Remote returns the span context a child of parent should continue.
// ok is false when parent is neither a traceparent nor a UUID.
func Remote(parent string) (trace.SpanContext, bool) {
	if sc, err := Parse(parent); err == nil {
		return sc, true
	}
	id, err := uuid.Parse(strings.TrimSpace(parent))
	if err != nil || id == uuid.Nil {
		return trace.SpanContext{}, false
	}
	var spanID trace.SpanID
	copy(spanID[:], id[8:])
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID(id),
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

// NewRoot mints a sampled traceparent with a fresh trace id.
func NewRoot() string {
	return Format(trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID(uuid.New()),
		SpanID:     newSpanID(),
		TraceFlags: trace.FlagsSampled,
	}))
}

// NewChild mints a traceparent under parent: same trace id, fresh span id.
// When parent cannot be continued, or is empty, a new root is returned.
// The result never equals parent.
func NewChild(parent string) string {
	sc, ok := Remote(parent)
	if !ok {
		return NewRoot()
	}
	for {
		child := Format(sc.WithSpanID(newSpanID()).WithRemote(false))
		if child != parent {
			return child
		}
	}
}

// TraceID returns the trace id of an identifier, or "" when it has none.
func TraceID(id string) string {
	sc, ok := Remote(id)
	if !ok {
		return ""
	}
	return sc.TraceID().String()
}

func newSpanID() trace.SpanID {
	for {
		u := uuid.New()
		var id trace.SpanID
		copy(id[:], u[:8])
		if id.IsValid() {
			return id
		}
	}
}
