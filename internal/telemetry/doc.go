// Package telemetry owns the OpenTelemetry providers used by eventtrace.
//
// # Overview
//
// A Telemetry value wraps a TracerProvider and an optional MeterProvider that
// export over OTLP (gRPC or HTTP/protobuf). The tracing sink builds one per
// handler from its secured connection string; the CLI builds one for its own
// dispatch metrics from the process configuration.
//
// # Connection strings
//
//	Endpoint=collector.internal:4317;Protocol=grpc;ServiceName=crm-plugins
//	Endpoint=https://otlp.example.com;Protocol=http/protobuf;Header.Authorization=Bearer abc
//	Endpoint=localhost:4317;Insecure=true;SampleRate=0.25
//
// Keys are case-insensitive. Unknown keys and malformed values yield an
// error wrapping ErrInvalidConnectionString.
//
// # Error Handling
//
// Exporter construction failures do not fail New. The instance is marked
// degraded and hands out no-op tracers and meters.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
