package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// PaymentResult is a gateway outcome to be recorded against an order.
type PaymentResult struct {
	OrderID          uuid.UUID
	PaymentType      enums.PaymentType
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Success          bool
	FailureReason    string
	Method           *enums.PaymentMethod
}

// InitiatePaymentInput starts a payment stage for an order.
type InitiatePaymentInput struct {
	PaymentType enums.PaymentType `json:"payment_type" validate:"required,oneof=advance final full"`
}

// VerifyInput is the client callback after checkout on the gateway page.
type VerifyInput struct {
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	GatewayOrderID   string    `json:"razorpay_order_id" validate:"required,max=64"`
	GatewayPaymentID string    `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature        string    `json:"razorpay_signature" validate:"required,max=128"`
	Method           *string   `json:"method,omitempty" validate:"omitempty,oneof=upi card netbanking wallet"`
}

type PaymentView struct {
	ID               uuid.UUID            `json:"id"`
	OrderID          uuid.UUID            `json:"order_id"`
	Amount           decimal.Decimal      `json:"amount"`
	PaymentType      enums.PaymentType    `json:"payment_type"`
	Status           enums.PaymentStatus  `json:"payment_status"`
	Method           *enums.PaymentMethod `json:"payment_method,omitempty"`
	GatewayOrderID   *string              `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string              `json:"gateway_payment_id,omitempty"`
	FailureReason    *string              `json:"failure_reason,omitempty"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// InitiatedPayment is what the client needs to open the gateway checkout.
type InitiatedPayment struct {
	Payment        PaymentView `json:"payment"`
	GatewayOrderID string      `json:"razorpay_order_id"`
	AmountMinor    int64       `json:"amount"`
	Currency       string      `json:"currency"`
	KeyID          string      `json:"key_id,omitempty"`
}

// Summary reports settlement progress for an order. TotalDue is the order
// total; Outstanding is what remains after successful payments.
type Summary struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Total       decimal.Decimal `json:"total"`
	AdvancePaid bool            `json:"advance_paid"`
	FinalPaid   bool            `json:"final_paid"`
	FullyPaid   bool            `json:"fully_paid"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	TotalDue    decimal.Decimal `json:"total_due"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Payments    []PaymentView   `json:"payments"`
}

func ToView(p *models.Payment) PaymentView {
	return PaymentView{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Amount:           p.Amount,
		PaymentType:      p.PaymentType,
		Status:           p.Status,
		Method:           p.Method,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		FailureReason:    p.FailureReason,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
	}
}
