package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, true},
		{enums.OrderStatusProcessing, enums.OrderStatusReadyForDispatch, true},
		{enums.OrderStatusReadyForDispatch, enums.OrderStatusDispatched, true},
		{enums.OrderStatusDispatched, enums.OrderStatusDelivered, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusReadyForDispatch, enums.OrderStatusCancelled, true},
		{enums.OrderStatusDispatched, enums.OrderStatusCancelled, false},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPending, false},
		{enums.OrderStatusPending, enums.OrderStatusProcessing, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusPending, false},
		{enums.OrderStatusDelivered, enums.OrderStatusDispatched, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, transitions[s])
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	number := NewOrderNumber(at)
	assert.Regexp(t, regexp.MustCompile(`^SF-20260309-[0-9A-F]{6}$`), number)
	assert.NotEqual(t, number, NewOrderNumber(at))
}
