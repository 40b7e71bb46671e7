package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// Payment is one attempt at paying a stage of an order. Rows are appended per
// attempt; a failed attempt is never rewritten into a success.
type Payment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Amount           decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentType      enums.PaymentType    `gorm:"column:payment_type;type:varchar(16);not null"`
	Status           enums.PaymentStatus  `gorm:"column:payment_status;type:varchar(16);not null;default:'initiated'"`
	Method           *enums.PaymentMethod `gorm:"column:payment_method;type:varchar(16)"`
	GatewayOrderID   *string              `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string              `gorm:"column:gateway_payment_id;uniqueIndex:idx_payments_success_gateway_payment,where:payment_status = 'success'"`
	GatewaySignature *string              `gorm:"column:gateway_signature"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	PaidAt           *time.Time           `gorm:"column:paid_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsSuccess reports whether the attempt settled successfully.
func (p Payment) IsSuccess() bool {
	return p.Status == enums.PaymentStatusSuccess
}
