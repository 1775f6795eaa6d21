package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Request results
const (
	ResultAnswered     = "answered"
	ResultExhausted    = "exhausted"
	ResultNoCandidates = "no_candidates"
)

// Metrics collects router metrics. A nil *Metrics records nothing.
type Metrics struct {
	attempts        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	requests        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	cooldowns       *prometheus.CounterVec
}

// NewMetrics registers the router collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Provider attempts by outcome.",
		}, []string{"provider", "outcome"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "router",
			Name:      "failures_total",
			Help:      "Provider failures by classified kind.",
		}, []string{"provider", "kind"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Ask calls by terminal result.",
		}, []string{"result"}),
		attemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qna",
			Subsystem: "router",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of a single provider call.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"provider"}),
		cooldowns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "router",
			Name:      "cooldowns_total",
			Help:      "Cooldowns started after transient failures.",
		}, []string{"provider"}),
	}
}

// RecordAttempt counts one provider attempt and observes its latency when it made a call.
func (m *Metrics) RecordAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.attemptDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordFailure counts a classified failure.
func (m *Metrics) RecordFailure(provider, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(provider, kind).Inc()
}

// RecordRequest counts a finished Ask call.
func (m *Metrics) RecordRequest(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

// RecordCooldown counts a cooldown start.
func (m *Metrics) RecordCooldown(provider string) {
	if m == nil {
		return
	}
	m.cooldowns.WithLabelValues(provider).Inc()
}
