package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// OrderLine is the compact line description carried on order events.
type OrderLine struct {
	VariantSizeID uuid.UUID       `json:"variant_size_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent signals a cart was converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	CartID      uuid.UUID       `json:"cart_id"`
	Total       decimal.Decimal `json:"total"`
	Lines       []OrderLine     `json:"lines"`
}

// OrderStatusChangedEvent is emitted on every forward transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	Trigger    string            `json:"trigger"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// OrderCancelledEvent reports a cancellation and the reservations it released.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	UserID        uuid.UUID   `json:"user_id"`
	PreviousState string      `json:"previous_state"`
	Reason        string      `json:"reason,omitempty"`
	Released      []OrderLine `json:"released"`
	CancelledAt   time.Time   `json:"cancelled_at"`
}

// PaymentEvent covers initiation, success and failure of a payment attempt.
type PaymentEvent struct {
	PaymentID        uuid.UUID           `json:"payment_id"`
	OrderID          uuid.UUID           `json:"order_id"`
	PaymentType      enums.PaymentType   `json:"payment_type"`
	Status           enums.PaymentStatus `json:"status"`
	Amount           decimal.Decimal     `json:"amount"`
	GatewayOrderID   string              `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
}

// StockRestockedEvent records an admin restock.
type StockRestockedEvent struct {
	VariantSizeID   uuid.UUID `json:"variant_size_id"`
	Added           int       `json:"added"`
	QuantityInStock int       `json:"quantity_in_stock"`
}

// LowStockDetectedEvent is raised by the alert scan.
type LowStockDetectedEvent struct {
	VariantSizeID uuid.UUID `json:"variant_size_id"`
	Available     int       `json:"available"`
	Threshold     int       `json:"threshold"`
}

// LowMaterialDetectedEvent is raised by the alert scan.
type LowMaterialDetectedEvent struct {
	RawMaterialID   uuid.UUID       `json:"raw_material_id"`
	Name            string          `json:"name"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	ReorderLevel    decimal.Decimal `json:"reorder_level"`
}

// RawMaterialsDeductedEvent records production consumption for an order.
type RawMaterialsDeductedEvent struct {
	OrderID   uuid.UUID                     `json:"order_id"`
	Deducted  map[uuid.UUID]decimal.Decimal `json:"deducted"`
	Remaining map[uuid.UUID]decimal.Decimal `json:"remaining"`
}

// CartAbandonedEvent is emitted by the abandoned cart sweep.
type CartAbandonedEvent struct {
	CartID         uuid.UUID `json:"cart_id"`
	UserID         uuid.UUID `json:"user_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
