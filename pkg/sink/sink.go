package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
)

// Kind identifies the sink family. It drives output precedence.
type Kind int

const (
	KindLocalLogger Kind = iota
	KindExternalTracing
	KindEventBus
)

func (k Kind) String() string {
	switch k {
	case KindLocalLogger:
		return "LocalLogger"
	case KindExternalTracing:
		return "ExternalTracing"
	case KindEventBus:
		return "EventBus"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// RecordKind distinguishes the two records a hierarchical emission produces.
type RecordKind int

const (
	RecordTrace RecordKind = iota
	RecordDependency
)

func (k RecordKind) String() string {
	if k == RecordDependency {
		return "Dependency"
	}
	return "Trace"
}

// MarshalText implements encoding.TextMarshaler.
func (k RecordKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RecordKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Trace":
		*k = RecordTrace
	case "Dependency":
		*k = RecordDependency
	default:
		return fmt.Errorf("unknown record kind %q", text)
	}
	return nil
}

// Record is one telemetry record handed to a sink. NewID is the identifier
// proposed by the dispatcher; a sink may return its own instead.
type Record struct {
	Kind         RecordKind
	Source       string
	Stage        string
	Message      string
	Level        severity.Level
	ParentID     string
	NewID        string
	Timestamp    time.Time
	Success      bool
	InvocationID string
}

// Sink is one telemetry destination.
type Sink interface {
	Name() string
	Kind() Kind
	Enabled() bool
	MinLevel() severity.Level
	SupportsHierarchy() bool
	// Emit records rec and returns the identifier of the new record.
	Emit(ctx context.Context, rec Record) (string, error)
	// Flush pushes buffered records to the backend.
	Flush(ctx context.Context) error
}

// Config is the immutable configuration of one sink.
type Config struct {
	Name        string
	Enabled     bool
	MinLevel    severity.Level
	Connection  config.Secret
	OutputField string
	Append      bool
	Timeout     time.Duration
	Subject     string
}

// ConfigFrom resolves the Config of sink name from handler configuration.
// Unknown level names fall back to Information.
func ConfigFrom(name string, hc *config.HandlerConfig) Config {
	s := hc.Sink(name)
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return Config{
		Name:        name,
		Enabled:     s.Enabled,
		MinLevel:    severity.ParseOrDefault(s.LogLevel),
		Connection:  s.Connection,
		OutputField: hc.OutputField,
		Append:      hc.Append,
		Timeout:     timeout,
		Subject:     s.Subject,
	}
}

// base carries the Config-backed part of the Sink interface.
type base struct {
	cfg Config
}

func (b *base) Name() string { return b.cfg.Name }
func (b *base) Enabled() bool { return b.cfg.Enabled }
func (b *base) MinLevel() severity.Level { return b.cfg.MinLevel }
func (b *base) Timeout() time.Duration { return b.cfg.Timeout }
func (b *base) Config() Config { return b.cfg }
