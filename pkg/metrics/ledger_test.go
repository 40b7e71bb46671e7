package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.ReservationSucceeded()
	m.ReservationSucceeded()
	m.ReservationRejected()
	m.PaymentRecorded("advance", "success")
	m.OrderTransition("confirmed")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "shirtforge_stock_reservations_total", "outcome", "reserved")
	require.NoError(t, err)
	require.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "shirtforge_stock_reservations_total", "outcome", "insufficient")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "shirtforge_payments_recorded_total", "type", "advance")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "shirtforge_order_transitions_total", "to", "confirmed")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.ReservationSucceeded()
	m.PaymentRecorded("", "")
	NewLedgerMetrics(nil).OrderTransition("dispatched")
}
