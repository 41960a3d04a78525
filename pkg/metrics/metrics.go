// Package metrics exposes drift's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drift"

// Exchange outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeUpstream  = "upstream_error"
	OutcomeEmbedding = "embedding_error"
	OutcomeReset     = "reset"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// driftBuckets spans drift scores: 0 is identical, 100 orthogonal, up to 200 opposed.
var driftBuckets = []float64{5, 10, 20, 30, 40, 50, 60, 80, 100, 150, 200}

// Metrics holds the collectors registered for one process. Build it with New;
// the zero value is not usable, but a nil *Metrics ignores every observation.
type Metrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	drift            *prometheus.HistogramVec
	levels           *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	iteration        prometheus.Gauge
	journalDropped   prometheus.Counter
}

// New registers drift's collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		exchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exchanges_total",
				Help:      "Total number of exchanges by outcome",
			},
			[]string{"outcome"},
		),

		exchangeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Duration of completed exchanges, including streaming and embedding",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),

		drift: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "score",
				Help:      "Drift scores of committed turns by kind",
				Buckets:   driftBuckets,
			},
			[]string{"kind"},
		),

		levels: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_by_level_total",
				Help:      "Committed turns by hybrid drift level",
			},
			[]string{"level"},
		),

		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of decisions by resulting status",
			},
			[]string{"status"},
		),

		iteration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conversation_iteration",
				Help:      "Current iteration count of the conversation",
			},
		),

		journalDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_dropped_total",
				Help:      "Journal events dropped because the queue was full or closed",
			},
		),
	}
}

// ObserveTurn records a committed turn.
func (m *Metrics) ObserveTurn(strict, progressive, hybrid float64, level string, iteration int, took time.Duration) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(OutcomeOK).Inc()
	m.exchangeDuration.Observe(took.Seconds())
	m.drift.WithLabelValues("strict").Observe(strict)
	m.drift.WithLabelValues("progressive").Observe(progressive)
	m.drift.WithLabelValues("hybrid").Observe(hybrid)
	m.levels.WithLabelValues(level).Inc()
	m.iteration.Set(float64(iteration))
}

// ObserveFailure records an exchange that ended without committing.
func (m *Metrics) ObserveFailure(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

// ObserveDecision records a decision and the iteration it left behind.
func (m *Metrics) ObserveDecision(status string, iteration int) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
	m.iteration.Set(float64(iteration))
}

// JournalDropped counts an event the journal could not accept.
func (m *Metrics) JournalDropped() {
	if m == nil {
		return
	}
	m.journalDropped.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
