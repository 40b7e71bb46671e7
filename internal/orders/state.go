package orders

import "github.com/angelmondragon/shirtforge-backend/pkg/enums"

const (
	triggerPayment  = "payment"
	triggerAdmin    = "admin"
	triggerCustomer = "customer"
)

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:          {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:        {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:       {enums.OrderStatusReadyForDispatch, enums.OrderStatusCancelled},
	enums.OrderStatusReadyForDispatch: {enums.OrderStatusDispatched, enums.OrderStatusCancelled},
	enums.OrderStatusDispatched:       {enums.OrderStatusDelivered},
}

// adminTargets are the statuses an admin may move an order into directly.
// Confirmation only happens through a settled payment.
var adminTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusProcessing:       true,
	enums.OrderStatusReadyForDispatch: true,
	enums.OrderStatusDispatched:       true,
	enums.OrderStatusDelivered:        true,
	enums.OrderStatusCancelled:        true,
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status s may still be cancelled.
func Cancellable(s enums.OrderStatus) bool {
	return CanTransition(s, enums.OrderStatusCancelled)
}
