package catalog

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// UnitPrice applies a size markup to a variant base price:
// base * (1 + markup/100), rounded half-up to two decimals.
func UnitPrice(base, markupPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(markupPercent.Div(hundred))
	return base.Mul(factor).Round(2)
}
