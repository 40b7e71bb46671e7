package payments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Policy splits an order total into staged payments.
type Policy struct {
	AdvanceFraction decimal.Decimal
}

// DefaultPolicy collects half the total up front.
func DefaultPolicy() Policy {
	return Policy{AdvanceFraction: decimal.RequireFromString("0.5")}
}

// AmountDue returns what a payment of the given type should collect.
// Advance is a fixed share of the total and full is the whole total. Final is
// the total less the advance while nothing has been paid, and whatever is
// still owed afterwards, so advance + final always equals the total.
func (p Policy) AmountDue(total, paidSoFar decimal.Decimal, paymentType enums.PaymentType) (decimal.Decimal, error) {
	switch paymentType {
	case enums.PaymentTypeAdvance:
		return p.advance(total), nil
	case enums.PaymentTypeFinal:
		if !paidSoFar.IsPositive() {
			return total.Sub(p.advance(total)).Round(2), nil
		}
		remaining := total.Sub(paidSoFar)
		if remaining.IsNegative() {
			return decimal.Zero, nil
		}
		return remaining.Round(2), nil
	case enums.PaymentTypeFull:
		return total.Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown payment type %q", paymentType)
	}
}

func (p Policy) advance(total decimal.Decimal) decimal.Decimal {
	return total.Mul(p.AdvanceFraction).Round(2)
}

// ComputeAmountDue applies the default fifty-fifty split.
func ComputeAmountDue(total, paidSoFar decimal.Decimal, paymentType enums.PaymentType) (decimal.Decimal, error) {
	return DefaultPolicy().AmountDue(total, paidSoFar, paymentType)
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
