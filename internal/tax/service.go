package tax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// InvoiceLine is one order line as it appears on an invoice.
type InvoiceLine struct {
	SKU       string          `json:"sku"`
	SizeName  string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// InvoiceSummary is the data handed to the invoice renderer. Tax is shown on
// the invoice only; staged payment amounts are computed on the pre-tax total.
type InvoiceSummary struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	IssuedAt    time.Time       `json:"issued_at"`
	Lines       []InvoiceLine   `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxName     string          `json:"tax_name,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

type Service interface {
	// ActiveRate returns the percentage in effect at at, or zero when none is configured.
	ActiveRate(ctx context.Context, at time.Time) (decimal.Decimal, error)
	InvoiceSummary(ctx context.Context, order *models.Order) (*InvoiceSummary, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tax repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ActiveRate(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	cfg, err := s.active(ctx, at)
	if err != nil || cfg == nil {
		return decimal.Zero, err
	}
	return cfg.Percentage, nil
}

func (s *service) active(ctx context.Context, at time.Time) (*models.TaxConfiguration, error) {
	cfg, err := s.repo.FindActive(ctx, at)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tax configuration")
	}
	return cfg, nil
}

func (s *service) InvoiceSummary(ctx context.Context, order *models.Order) (*InvoiceSummary, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	cfg, err := s.active(ctx, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	summary := &InvoiceSummary{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		IssuedAt:    time.Now().UTC(),
		Lines:       make([]InvoiceLine, 0, len(order.Items)),
		Subtotal:    order.Total(),
		TaxRate:     decimal.Zero,
	}
	for _, item := range order.Items {
		summary.Lines = append(summary.Lines, InvoiceLine{
			SKU:       item.SKU,
			SizeName:  item.SizeName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		})
	}
	if cfg != nil {
		summary.TaxName = cfg.Name
		summary.TaxRate = cfg.Percentage
	}
	summary.Tax = Amount(summary.Subtotal, summary.TaxRate)
	summary.GrandTotal = summary.Subtotal.Add(summary.Tax)
	return summary, nil
}

// Amount is subtotal * rate/100 rounded half-up to two decimals.
func Amount(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(ratePercent).Div(hundred).Round(2)
}
