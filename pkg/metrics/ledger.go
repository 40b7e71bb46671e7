package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "shirtforge"

// LedgerMetrics counts stock and payment outcomes.
type LedgerMetrics struct {
	reservations *prometheus.CounterVec
	payments     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on reg. A nil registerer
// yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reservations_total",
		Help:      "Stock reservation attempts by outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_recorded_total",
		Help:      "Recorded payment attempts by stage and status.",
	}, []string{"type", "status"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions by target status.",
	}, []string{"to"})
	reg.MustRegister(reservations, payments, transitions)
	return &LedgerMetrics{
		reservations: reservations,
		payments:     payments,
		transitions:  transitions,
	}
}

func (m *LedgerMetrics) ReservationSucceeded() {
	m.incReservation("reserved")
}

func (m *LedgerMetrics) ReservationRejected() {
	m.incReservation("insufficient")
}

func (m *LedgerMetrics) incReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// PaymentRecorded counts a settled payment attempt.
func (m *LedgerMetrics) PaymentRecorded(paymentType, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(paymentType), normalizeLabel(status)).Inc()
}

// OrderTransition counts an order entering status.
func (m *LedgerMetrics) OrderTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}
