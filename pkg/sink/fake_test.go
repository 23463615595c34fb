package sink

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/eventtrace/pkg/severity"
)

// fakeSink records what it receives. emit, when set, decides the result.
type fakeSink struct {
	name     string
	kind     Kind
	enabled  bool
	min      severity.Level
	hier     bool
	timeout  time.Duration
	emit     func(ctx context.Context, rec Record) (string, error)
	flushErr error

	mu      sync.Mutex
	records []Record
	flushes int
}

func newFake(name string, kind Kind) *fakeSink {
	return &fakeSink{name: name, kind: kind, enabled: true, min: severity.Information}
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Kind() Kind { return f.kind }
func (f *fakeSink) Enabled() bool { return f.enabled }
func (f *fakeSink) MinLevel() severity.Level { return f.min }
func (f *fakeSink) SupportsHierarchy() bool { return f.hier }
func (f *fakeSink) Timeout() time.Duration { return f.timeout }

func (f *fakeSink) Emit(ctx context.Context, rec Record) (string, error) {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	if f.emit != nil {
		return f.emit(ctx, rec)
	}
	return rec.NewID, nil
}

func (f *fakeSink) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return f.flushErr
}

func (f *fakeSink) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

func (f *fakeSink) Flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}
