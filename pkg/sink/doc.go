// Package sink fans one telemetry record out to the configured sinks.
//
// # Sinks
//
// Three kinds exist, selected by handler configuration:
//
//   - LoggerSink writes a structured log line through internal/logging.
//   - TracingSink records OpenTelemetry spans exported over OTLP.
//   - BusSink publishes the record as JSON on a NATS subject.
//
// A sink that supports hierarchy receives a Dependency record under the
// resolved parent followed by a Trace record under the dependency, so the
// backend shows the handler as a call made by its parent.
//
// # Dispatch
//
// Dispatcher.Dispatch gates each sink on its minimum level, runs the enabled
// sinks concurrently under a per-sink timeout, flushes them and waits for
// all of them before returning. One failing sink never stops another.
//
//	d := sink.NewDispatcher([]sink.Sink{logSink, traceSink}, sink.WithLogger(logger))
//	res := d.Dispatch(ctx, sink.Input{Source: "Billing", Level: severity.Warning}, parent)
//	if res.ID != "" {
//	    output.Write(params, "TraceParent", res.ID, false)
//	}
package sink
