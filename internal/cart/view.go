package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/internal/tax"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// LineView is a cart line priced at current catalog prices.
type LineView struct {
	ItemID        uuid.UUID       `json:"item_id"`
	VariantSizeID uuid.UUID       `json:"variant_size_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	SizeName      string          `json:"size"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	Available     int             `json:"available"`
}

// CartView is the cart with derived totals.
type CartView struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Status         enums.CartStatus `json:"status"`
	Items          []LineView       `json:"items"`
	ItemCount      int              `json:"item_count"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TaxRate        decimal.Decimal  `json:"tax_rate"`
	Tax            decimal.Decimal  `json:"tax"`
	Total          decimal.Decimal  `json:"total"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

// LineIssue describes a cart line that can no longer be fulfilled.
type LineIssue struct {
	ItemID        uuid.UUID `json:"item_id"`
	VariantSizeID uuid.UUID `json:"variant_size_id"`
	SKU           string    `json:"sku"`
	Requested     int       `json:"requested"`
	Available     int       `json:"available"`
	Reason        string    `json:"reason"`
}

// StockValidation reports whether every line can currently be reserved.
type StockValidation struct {
	Valid  bool        `json:"valid"`
	Issues []LineIssue `json:"issues"`
}

func buildView(c *models.Cart, taxRate decimal.Decimal) *CartView {
	view := &CartView{
		ID:             c.ID,
		UserID:         c.UserID,
		Status:         c.Status,
		Items:          make([]LineView, 0, len(c.Items)),
		Subtotal:       decimal.Zero,
		TaxRate:        taxRate,
		LastActivityAt: c.LastActivityAt,
	}
	for _, item := range c.Items {
		line := LineView{
			ItemID:        item.ID,
			VariantSizeID: item.VariantSizeID,
			Quantity:      item.Quantity,
		}
		if item.VariantSize != nil {
			unit := catalog.ToView(item.VariantSize)
			line.SKU = unit.SKU
			line.Name = unit.Name
			line.SizeName = unit.SizeName
			line.UnitPrice = unit.UnitPrice
			line.Available = unit.Available
		}
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, line)
		view.ItemCount += item.Quantity
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
	}
	view.Tax = tax.Amount(view.Subtotal, taxRate)
	view.Total = view.Subtotal.Add(view.Tax)
	return view
}
