package sink

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeEmitted = "emitted"
	OutcomeGated   = "gated"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Metrics holds Prometheus metrics for the dispatcher.
//
//   - eventtrace_dispatch_records_total{sink,outcome}
//   - eventtrace_dispatch_duration_seconds{sink}
//   - eventtrace_dispatch_escalations_total
type Metrics struct {
	Records     *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Escalations prometheus.Counter
}

// DefaultMetrics returns metrics registered once on the default registerer.
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics registers dispatcher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventtrace_dispatch_records_total",
				Help: "Records handled per sink by outcome",
			},
			[]string{"sink", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventtrace_dispatch_duration_seconds",
				Help:    "Time spent emitting and flushing per sink",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"sink"},
		),
		Escalations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventtrace_dispatch_escalations_total",
				Help: "Dispatches where every attempted sink failed",
			},
		),
	}
}
