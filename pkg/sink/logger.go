package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eventtrace/internal/logging"
)

// LoggerSink writes records to the local structured log.
type LoggerSink struct {
	base
	logger *logging.Logger
}

// NewLoggerSink creates a LoggerSink writing through logger.
func NewLoggerSink(cfg Config, logger *logging.Logger) *LoggerSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoggerSink{base: base{cfg: cfg}, logger: logger.Named("record")}
}

func (s *LoggerSink) Kind() Kind { return KindLocalLogger }

// SupportsHierarchy is false: a log line carries its parent inline.
func (s *LoggerSink) SupportsHierarchy() bool { return false }

// Emit logs "<message> - TraceParent: <parent>", or just the message for a
// root record, and returns the proposed id.
func (s *LoggerSink) Emit(ctx context.Context, rec Record) (string, error) {
	msg := rec.Message
	if rec.ParentID != "" {
		msg = msg + " - TraceParent: " + rec.ParentID
	}

	fields := []zap.Field{
		zap.String("source", rec.Source),
		zap.String("stage", rec.Stage),
		zap.String("record.kind", rec.Kind.String()),
		zap.String("record.id", rec.NewID),
		zap.Stringer("severity", rec.Level),
	}
	if rec.ParentID != "" {
		fields = append(fields, zap.String("record.parent", rec.ParentID))
	}

	s.logger.Log(ctx, rec.Level.ZapLevel(), msg, fields...)
	return rec.NewID, nil
}

// Flush syncs the logger.
func (s *LoggerSink) Flush(context.Context) error {
	return s.logger.Sync()
}
