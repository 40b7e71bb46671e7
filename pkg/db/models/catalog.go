package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Size is a garment size with its price markup over the variant base price.
type Size struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name             string          `gorm:"column:name;not null;uniqueIndex"`
	MarkupPercentage decimal.Decimal `gorm:"column:size_markup_percentage;type:numeric(5,2);not null;default:0"`
	SortOrder        int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (s *Size) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// ProductVariant is a sellable shirt configuration. Fabric, color, pattern,
// sleeve and pocket are descriptive reference data.
type ProductVariant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex"`
	Name      string          `gorm:"column:name;not null"`
	Fabric    string          `gorm:"column:fabric;not null;default:''"`
	Color     string          `gorm:"column:color;not null;default:''"`
	Pattern   string          `gorm:"column:pattern;not null;default:''"`
	Sleeve    string          `gorm:"column:sleeve;not null;default:''"`
	Pocket    string          `gorm:"column:pocket;not null;default:''"`
	BasePrice decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VariantSize is the purchasable unit: one variant at one size.
type VariantSize struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:idx_variant_sizes_variant_size"`
	SizeID    uuid.UUID       `gorm:"column:size_id;type:uuid;not null;uniqueIndex:idx_variant_sizes_variant_size"`
	Variant   *ProductVariant `gorm:"foreignKey:VariantID"`
	Size      *Size           `gorm:"foreignKey:SizeID"`
	Stock     *Stock          `gorm:"foreignKey:VariantSizeID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (v *VariantSize) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Stock tracks physical and reserved units for one VariantSize.
type Stock struct {
	VariantSizeID     uuid.UUID `gorm:"column:variant_size_id;type:uuid;primaryKey"`
	QuantityInStock   int       `gorm:"column:quantity_in_stock;not null;default:0"`
	QuantityReserved  int       `gorm:"column:quantity_reserved;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:10"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Stock) TableName() string {
	return "stock"
}

// Available is the quantity that can still be reserved.
func (s Stock) Available() int {
	return s.QuantityInStock - s.QuantityReserved
}
