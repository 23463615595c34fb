// Package logging provides structured logging for eventtrace.
//
// # Overview
//
// The package wraps Zap with:
//   - A Trace level (-2, below Debug) so the full severity scale of the
//     correlation engine has a zap equivalent
//   - Dual output (stdout/stderr + OpenTelemetry log bridge)
//   - Context field injection (trace_id, span_id, invocation.id, trace.parent)
//   - Secret redaction for connection strings and tokens
//   - Optional level-aware sampling for engine diagnostics
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithInvocationID(ctx, id)
//	logger.Info(ctx, "record dispatched", zap.String("sink", "tracing"))
//
// The local logger sink writes telemetry records through Logger.Log, so
// sampling must stay disabled for any logger handed to a sink; records are
// not diagnostics and must not be dropped.
//
// # Testing
//
// TestLogger records entries in memory:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "dispatch failed")
//	tl.AssertLogged(t, zapcore.InfoLevel, "dispatch failed")
package logging
