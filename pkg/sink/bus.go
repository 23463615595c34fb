package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/eventtrace/internal/config"
)

// BusMessage is the JSON payload BusSink publishes.
type BusMessage struct {
	Kind         RecordKind `json:"kind"`
	ID           string     `json:"id"`
	ParentID     string     `json:"parentId,omitempty"`
	Source       string     `json:"source"`
	Stage        string     `json:"stage"`
	Message      string     `json:"message"`
	Severity     string     `json:"severity"`
	Timestamp    time.Time  `json:"timestamp"`
	Success      bool       `json:"success"`
	InvocationID string     `json:"invocationId,omitempty"`
}

// BusSink publishes records on a NATS subject. The connection is opened on
// first use and reopened after a failed attempt.
type BusSink struct {
	base

	mu   sync.Mutex
	conn *nats.Conn
}

// NewBusSink creates a BusSink. cfg.Connection holds the NATS URL.
func NewBusSink(cfg Config) *BusSink {
	return &BusSink{base: base{cfg: cfg}}
}

func (s *BusSink) Kind() Kind { return KindEventBus }

// SupportsHierarchy is true: both records are published so consumers can
// rebuild the call tree.
func (s *BusSink) SupportsHierarchy() bool { return true }

func (s *BusSink) connection() (*nats.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	if !s.cfg.Connection.IsSet() {
		return nil, fmt.Errorf("%w: no bus URL", ErrNotConfigured)
	}
	if s.cfg.Subject == "" {
		return nil, fmt.Errorf("%w: no bus subject", ErrNotConfigured)
	}

	opts := []nats.Option{
		nats.Name("eventtrace"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(s.cfg.Timeout))
	}
	nc, err := nats.Connect(s.cfg.Connection.Value(), opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to bus: %w", err)
	}
	s.conn = nc
	return nc, nil
}

// Emit publishes rec and returns the proposed id.
func (s *BusSink) Emit(_ context.Context, rec Record) (string, error) {
	nc, err := s.connection()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(BusMessage{
		Kind:         rec.Kind,
		ID:           rec.NewID,
		ParentID:     rec.ParentID,
		Source:       rec.Source,
		Stage:        rec.Stage,
		Message:      rec.Message,
		Severity:     rec.Level.String(),
		Timestamp:    rec.Timestamp.UTC(),
		Success:      rec.Success,
		InvocationID: rec.InvocationID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	if err := nc.Publish(s.cfg.Subject, data); err != nil {
		return "", fmt.Errorf("publishing record: %w", err)
	}
	return rec.NewID, nil
}

// Flush waits until the server has processed every published record. A
// context without a deadline is bounded by the sink timeout.
func (s *BusSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	nc := s.conn
	s.mu.Unlock()
	if nc == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := s.cfg.Timeout
		if timeout <= 0 {
			timeout = config.DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return nc.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (s *BusSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Drain()
	s.conn = nil
	return err
}
