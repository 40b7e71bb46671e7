package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// CreateOrderInput is the checkout request for the caller's active cart.
type CreateOrderInput struct {
	DeliveryAddressID uuid.UUID `json:"delivery_address_id" validate:"required"`
	Notes             *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// UpdateStatusInput is an admin-driven lifecycle change.
type UpdateStatusInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"tracking_number,omitempty" validate:"omitempty,max=128"`
	Reason         string            `json:"reason,omitempty" validate:"max=500"`
}

type OrderItemView struct {
	ID            uuid.UUID       `json:"id"`
	VariantSizeID uuid.UUID       `json:"variant_size_id"`
	SKU           string          `json:"sku"`
	SizeName      string          `json:"size"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

type OrderView struct {
	ID                 uuid.UUID         `json:"id"`
	OrderNumber        string            `json:"order_number"`
	UserID             uuid.UUID         `json:"user_id"`
	DeliveryAddressID  uuid.UUID         `json:"delivery_address_id"`
	Status             enums.OrderStatus `json:"status"`
	Notes              *string           `json:"notes,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	TrackingNumber     *string           `json:"tracking_number,omitempty"`
	Items              []OrderItemView   `json:"items"`
	Total              decimal.Decimal   `json:"total"`
	ConfirmedAt        *time.Time        `json:"confirmed_at,omitempty"`
	DispatchedAt       *time.Time        `json:"dispatched_at,omitempty"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ToView renders an order with its derived total.
func ToView(order *models.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ID:            item.ID,
			VariantSizeID: item.VariantSizeID,
			SKU:           item.SKU,
			SizeName:      item.SizeName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     item.LineTotal(),
		})
	}
	return OrderView{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		DeliveryAddressID:  order.DeliveryAddressID,
		Status:             order.Status,
		Notes:              order.Notes,
		CancellationReason: order.CancellationReason,
		TrackingNumber:     order.TrackingNumber,
		Items:              items,
		Total:              order.Total(),
		ConfirmedAt:        order.ConfirmedAt,
		DispatchedAt:       order.DispatchedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}
