package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks what the publisher does with each outbox row.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	lag      prometheus.Histogram
}

const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_publish_lag_seconds",
		Help:      "Time between an outbox row being written and its successful publish.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
	reg.MustRegister(outcomes, lag)
	return &OutboxMetrics{outcomes: outcomes, lag: lag}
}

// Record counts one row with the given outcome.
func (m *OutboxMetrics) Record(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

// ObserveLag records publish lag in seconds; negative values are clamped.
func (m *OutboxMetrics) ObserveLag(seconds float64) {
	if m == nil || m.lag == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	m.lag.Observe(seconds)
}
