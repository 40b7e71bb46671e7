package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RawMaterial is a consumable input to shirt production (fabric, buttons, thread).
type RawMaterial struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name            string          `gorm:"column:name;not null;uniqueIndex"`
	Unit            string          `gorm:"column:unit;not null"`
	CurrentQuantity decimal.Decimal `gorm:"column:current_quantity;type:numeric(12,3);not null;default:0"`
	ReorderLevel    decimal.Decimal `gorm:"column:reorder_level;type:numeric(12,3);not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *RawMaterial) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// ManufacturingSpecification states how much of a material one unit of a
// variant-size consumes.
type ManufacturingSpecification struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VariantSizeID    uuid.UUID       `gorm:"column:variant_size_id;type:uuid;not null;uniqueIndex:idx_manufacturing_specs_unit_material"`
	RawMaterialID    uuid.UUID       `gorm:"column:raw_material_id;type:uuid;not null;uniqueIndex:idx_manufacturing_specs_unit_material"`
	QuantityRequired decimal.Decimal `gorm:"column:quantity_required;type:numeric(12,3);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (s *ManufacturingSpecification) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// TaxConfiguration is a dated tax rate used for invoice summaries.
type TaxConfiguration struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null"`
	EffectiveFrom time.Time       `gorm:"column:effective_from;not null"`
	EffectiveTo   *time.Time      `gorm:"column:effective_to"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *TaxConfiguration) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
