package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateStock       OutboxAggregateType = "stock"
	AggregateRawMaterial OutboxAggregateType = "raw_material"
	AggregateCart        OutboxAggregateType = "cart"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateStock,
	AggregateRawMaterial,
	AggregateCart,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventPaymentInitiated     OutboxEventType = "payment_initiated"
	EventPaymentSucceeded     OutboxEventType = "payment_succeeded"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventStockRestocked       OutboxEventType = "stock_restocked"
	EventLowStockDetected     OutboxEventType = "low_stock_detected"
	EventLowMaterialDetected  OutboxEventType = "low_material_detected"
	EventRawMaterialsDeducted OutboxEventType = "raw_materials_deducted"
	EventCartAbandoned        OutboxEventType = "cart_abandoned"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventPaymentInitiated,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventStockRestocked,
	EventLowStockDetected,
	EventLowMaterialDetected,
	EventRawMaterialsDeducted,
	EventCartAbandoned,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
