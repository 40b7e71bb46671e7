package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

// VariantSizeView is a purchasable unit with its derived price and availability.
type VariantSizeView struct {
	VariantSizeID uuid.UUID       `json:"variant_size_id"`
	VariantID     uuid.UUID       `json:"variant_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	SizeName      string          `json:"size"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Markup        decimal.Decimal `json:"size_markup_percentage"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Available     int             `json:"available"`
}

// VariantView is a catalog listing entry.
type VariantView struct {
	ID        uuid.UUID         `json:"id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Fabric    string            `json:"fabric"`
	Color     string            `json:"color"`
	Pattern   string            `json:"pattern"`
	Sleeve    string            `json:"sleeve"`
	Pocket    string            `json:"pocket"`
	BasePrice decimal.Decimal   `json:"base_price"`
	Sizes     []VariantSizeView `json:"sizes"`
}

// Service exposes pricing and catalog reads.
type Service interface {
	ResolveUnitPrice(ctx context.Context, variantSizeID uuid.UUID) (decimal.Decimal, error)
	GetVariantSize(ctx context.Context, variantSizeID uuid.UUID) (*VariantSizeView, error)
	ListVariants(ctx context.Context) ([]VariantView, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ResolveUnitPrice(ctx context.Context, variantSizeID uuid.UUID) (decimal.Decimal, error) {
	view, err := s.GetVariantSize(ctx, variantSizeID)
	if err != nil {
		return decimal.Zero, err
	}
	return view.UnitPrice, nil
}

func (s *service) GetVariantSize(ctx context.Context, variantSizeID uuid.UUID) (*VariantSizeView, error) {
	if variantSizeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant size id required")
	}
	vs, err := s.repo.FindVariantSize(ctx, variantSizeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant size not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant size")
	}
	view := ToView(vs)
	return &view, nil
}

func (s *service) ListVariants(ctx context.Context) ([]VariantView, error) {
	variants, err := s.repo.ListActiveVariants(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variants")
	}
	out := make([]VariantView, 0, len(variants))
	for i := range variants {
		v := variants[i]
		sizes, err := s.repo.ListVariantSizes(ctx, v.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant sizes")
		}
		view := VariantView{
			ID:        v.ID,
			SKU:       v.SKU,
			Name:      v.Name,
			Fabric:    v.Fabric,
			Color:     v.Color,
			Pattern:   v.Pattern,
			Sleeve:    v.Sleeve,
			Pocket:    v.Pocket,
			BasePrice: v.BasePrice,
			Sizes:     make([]VariantSizeView, 0, len(sizes)),
		}
		for j := range sizes {
			sizes[j].Variant = &v
			view.Sizes = append(view.Sizes, ToView(&sizes[j]))
		}
		out = append(out, view)
	}
	return out, nil
}

// ToView derives the price and availability of a loaded variant size.
// Variant and Size must be preloaded; a missing Stock row reads as zero available.
func ToView(vs *models.VariantSize) VariantSizeView {
	view := VariantSizeView{VariantSizeID: vs.ID, VariantID: vs.VariantID}
	if vs.Variant != nil {
		view.SKU = vs.Variant.SKU
		view.Name = vs.Variant.Name
		view.BasePrice = vs.Variant.BasePrice
	}
	if vs.Size != nil {
		view.SizeName = vs.Size.Name
		view.Markup = vs.Size.MarkupPercentage
	}
	view.UnitPrice = UnitPrice(view.BasePrice, view.Markup)
	if vs.Stock != nil {
		view.Available = vs.Stock.Available()
	}
	return view
}
