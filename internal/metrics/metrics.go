package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the primality pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Per-stage latencies
	StageLatency *prometheus.HistogramVec

	// Whole-query latency, parse included
	QueryLatency prometheus.Histogram

	// Verdicts delivered
	Verdicts *prometheus.CounterVec

	// Parse errors by kind
	ParseErrors *prometheus.CounterVec

	// Queries abandoned before a result
	Cancelled prometheus.Counter

	// Queries currently running
	InFlight prometheus.Gauge
}

// New creates a Metrics instance with every collector registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "primecheck_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10, 60},
		}, []string{"stage"}), // stage: "parse", "trivial", "miller_rabin", "lucas"

		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "primecheck_query_duration_seconds",
			Help:    "Duration of a full query from input to verdict",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10, 60, 300},
		}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "primecheck_verdicts_total",
			Help: "Total verdicts delivered by verdict",
		}, []string{"verdict"}), // verdict: "prime", "composite"

		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "primecheck_parse_errors_total",
			Help: "Total rejected inputs by parse error kind",
		}, []string{"kind"}),

		Cancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "primecheck_cancelled_total",
			Help: "Total queries cancelled before delivering a result",
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "primecheck_queries_in_flight",
			Help: "Number of queries currently being computed",
		}),
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveQuery records the duration of a completed query.
func (m *Metrics) ObserveQuery(d time.Duration) {
	if m != nil {
		m.QueryLatency.Observe(d.Seconds())
	}
}

// IncrementVerdict records a delivered verdict.
func (m *Metrics) IncrementVerdict(verdict string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict).Inc()
	}
}

// IncrementParseError records a rejected input.
func (m *Metrics) IncrementParseError(kind string) {
	if m != nil {
		m.ParseErrors.WithLabelValues(kind).Inc()
	}
}

// IncrementCancelled records an abandoned query.
func (m *Metrics) IncrementCancelled() {
	if m != nil {
		m.Cancelled.Inc()
	}
}

// QueryStarted marks a query as running and returns the func that ends it.
func (m *Metrics) QueryStarted() (done func()) {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
