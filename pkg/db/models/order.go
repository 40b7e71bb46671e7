package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// Order is an immutable snapshot of a checked out cart. Only status and
// delivery metadata change after creation; the total is always derived.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID             uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	DeliveryAddressID  uuid.UUID         `gorm:"column:delivery_address_id;type:uuid;not null"`
	Status             enums.OrderStatus `gorm:"column:status;type:varchar(32);not null;default:'pending'"`
	Notes              *string           `gorm:"column:notes"`
	CancellationReason *string           `gorm:"column:cancellation_reason"`
	TrackingNumber     *string           `gorm:"column:tracking_number"`
	ConfirmedAt        *time.Time        `gorm:"column:confirmed_at"`
	DispatchedAt       *time.Time        `gorm:"column:dispatched_at"`
	DeliveredAt        *time.Time        `gorm:"column:delivered_at"`
	CancelledAt        *time.Time        `gorm:"column:cancelled_at"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	// MaterialsDeductedAt is set once production inputs were drawn for the order.
	MaterialsDeductedAt *time.Time `gorm:"column:materials_deducted_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// Total sums quantity times snapshot unit price across the loaded items.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderItem freezes the unit price at order creation.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	VariantSizeID uuid.UUID       `gorm:"column:variant_size_id;type:uuid;not null"`
	SKU           string          `gorm:"column:sku;not null"`
	SizeName      string          `gorm:"column:size_name;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
