// Package seed loads catalog, stock and bill-of-materials fixtures from YAML.
package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
)

type Fixture struct {
	Sizes        []SizeFixture     `yaml:"sizes"`
	RawMaterials []MaterialFixture `yaml:"raw_materials"`
	Variants     []VariantFixture  `yaml:"variants"`
	Taxes        []TaxFixture      `yaml:"taxes"`
}

type SizeFixture struct {
	Name      string `yaml:"name"`
	Markup    string `yaml:"markup"`
	SortOrder int    `yaml:"sort_order"`
}

type MaterialFixture struct {
	Name         string `yaml:"name"`
	Unit         string `yaml:"unit"`
	Quantity     string `yaml:"quantity"`
	ReorderLevel string `yaml:"reorder_level"`
}

type VariantFixture struct {
	SKU       string            `yaml:"sku"`
	Name      string            `yaml:"name"`
	Fabric    string            `yaml:"fabric"`
	Color     string            `yaml:"color"`
	Pattern   string            `yaml:"pattern"`
	Sleeve    string            `yaml:"sleeve"`
	Pocket    string            `yaml:"pocket"`
	BasePrice string            `yaml:"base_price"`
	Sizes     []UnitFixture     `yaml:"sizes"`
	Materials map[string]string `yaml:"materials"`
}

// UnitFixture is one size of a variant. Materials override the variant-level
// per-unit requirements for this size only.
type UnitFixture struct {
	Size      string            `yaml:"size"`
	Stock     int               `yaml:"stock"`
	Threshold int               `yaml:"low_stock_threshold"`
	Materials map[string]string `yaml:"materials"`
}

type TaxFixture struct {
	Name          string `yaml:"name"`
	Percentage    string `yaml:"percentage"`
	EffectiveFrom string `yaml:"effective_from"`
}

// Result counts the rows created by Apply.
type Result struct {
	Sizes          int
	Variants       int
	Units          int
	RawMaterials   int
	Specifications int
	Taxes          int
}

// Load decodes a fixture document.
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// Apply inserts anything in f that is not already present, keyed by size name,
// material name and SKU. Existing stock levels are left untouched.
func Apply(ctx context.Context, tx *gorm.DB, f *Fixture) (Result, error) {
	var res Result
	if f == nil {
		return res, nil
	}
	db := tx.WithContext(ctx)

	sizes := map[string]*models.Size{}
	for _, sf := range f.Sizes {
		markup, err := parseDecimal(sf.Markup, "size "+sf.Name+" markup")
		if err != nil {
			return res, err
		}
		size := models.Size{Name: sf.Name, MarkupPercentage: markup, SortOrder: sf.SortOrder}
		created, err := firstOrCreate(db, &size, "name = ?", sf.Name)
		if err != nil {
			return res, fmt.Errorf("size %s: %w", sf.Name, err)
		}
		if created {
			res.Sizes++
		}
		sizes[sf.Name] = &size
	}

	materials := map[string]*models.RawMaterial{}
	for _, mf := range f.RawMaterials {
		qty, err := parseDecimal(mf.Quantity, "material "+mf.Name+" quantity")
		if err != nil {
			return res, err
		}
		reorder, err := parseDecimal(mf.ReorderLevel, "material "+mf.Name+" reorder level")
		if err != nil {
			return res, err
		}
		material := models.RawMaterial{Name: mf.Name, Unit: mf.Unit, CurrentQuantity: qty, ReorderLevel: reorder}
		created, err := firstOrCreate(db, &material, "name = ?", mf.Name)
		if err != nil {
			return res, fmt.Errorf("material %s: %w", mf.Name, err)
		}
		if created {
			res.RawMaterials++
		}
		materials[mf.Name] = &material
	}

	for _, vf := range f.Variants {
		base, err := parseDecimal(vf.BasePrice, "variant "+vf.SKU+" base price")
		if err != nil {
			return res, err
		}
		variant := models.ProductVariant{
			SKU:       vf.SKU,
			Name:      vf.Name,
			Fabric:    vf.Fabric,
			Color:     vf.Color,
			Pattern:   vf.Pattern,
			Sleeve:    vf.Sleeve,
			Pocket:    vf.Pocket,
			BasePrice: base,
			IsActive:  true,
		}
		created, err := firstOrCreate(db, &variant, "sku = ?", vf.SKU)
		if err != nil {
			return res, fmt.Errorf("variant %s: %w", vf.SKU, err)
		}
		if created {
			res.Variants++
		}

		for _, uf := range vf.Sizes {
			size, ok := sizes[uf.Size]
			if !ok {
				return res, fmt.Errorf("variant %s references unknown size %q", vf.SKU, uf.Size)
			}
			unit := models.VariantSize{VariantID: variant.ID, SizeID: size.ID}
			created, err := firstOrCreate(db, &unit, "variant_id = ? AND size_id = ?", variant.ID, size.ID)
			if err != nil {
				return res, fmt.Errorf("variant %s size %s: %w", vf.SKU, uf.Size, err)
			}
			if created {
				res.Units++
				threshold := uf.Threshold
				if threshold <= 0 {
					threshold = 10
				}
				stock := models.Stock{VariantSizeID: unit.ID, QuantityInStock: uf.Stock, LowStockThreshold: threshold}
				if err := db.Create(&stock).Error; err != nil {
					return res, fmt.Errorf("stock for %s/%s: %w", vf.SKU, uf.Size, err)
				}
			}

			for name, raw := range mergeMaterials(vf.Materials, uf.Materials) {
				material, ok := materials[name]
				if !ok {
					return res, fmt.Errorf("variant %s references unknown material %q", vf.SKU, name)
				}
				qty, err := parseDecimal(raw, "requirement "+name)
				if err != nil {
					return res, err
				}
				if !qty.IsPositive() {
					return res, fmt.Errorf("requirement %s for %s must be positive", name, vf.SKU)
				}
				spec := models.ManufacturingSpecification{VariantSizeID: unit.ID, RawMaterialID: material.ID, QuantityRequired: qty}
				created, err := firstOrCreate(db, &spec, "variant_size_id = ? AND raw_material_id = ?", unit.ID, material.ID)
				if err != nil {
					return res, fmt.Errorf("specification %s/%s: %w", vf.SKU, name, err)
				}
				if created {
					res.Specifications++
				}
			}
		}
	}

	for _, tf := range f.Taxes {
		pct, err := parseDecimal(tf.Percentage, "tax "+tf.Name)
		if err != nil {
			return res, err
		}
		from := time.Now().UTC()
		if tf.EffectiveFrom != "" {
			from, err = time.Parse("2006-01-02", tf.EffectiveFrom)
			if err != nil {
				return res, fmt.Errorf("tax %s effective_from: %w", tf.Name, err)
			}
		}
		cfg := models.TaxConfiguration{Name: tf.Name, Percentage: pct, EffectiveFrom: from, IsActive: true}
		created, err := firstOrCreate(db, &cfg, "name = ?", tf.Name)
		if err != nil {
			return res, fmt.Errorf("tax %s: %w", tf.Name, err)
		}
		if created {
			res.Taxes++
		}
	}

	return res, nil
}

func firstOrCreate(db *gorm.DB, dest any, query string, args ...any) (bool, error) {
	tx := db.Where(query, args...).Limit(1).Find(dest)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return false, nil
	}
	if err := db.Create(dest).Error; err != nil {
		return false, err
	}
	return true, nil
}

func mergeMaterials(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
