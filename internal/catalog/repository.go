package catalog

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
)

// Repository reads catalog reference data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVariantSize(ctx context.Context, id uuid.UUID) (*models.VariantSize, error)
	FindVariantSizes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.VariantSize, error)
	ListActiveVariants(ctx context.Context) ([]models.ProductVariant, error)
	ListVariantSizes(ctx context.Context, variantID uuid.UUID) ([]models.VariantSize, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariantSize(ctx context.Context, id uuid.UUID) (*models.VariantSize, error) {
	var vs models.VariantSize
	err := r.db.WithContext(ctx).
		Preload("Variant").
		Preload("Size").
		Preload("Stock").
		Where("id = ?", id).
		First(&vs).Error
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

func (r *repository) FindVariantSizes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.VariantSize, error) {
	out := make(map[uuid.UUID]*models.VariantSize, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.VariantSize
	err := r.db.WithContext(ctx).
		Preload("Variant").
		Preload("Size").
		Preload("Stock").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (r *repository) ListActiveVariants(ctx context.Context) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sku ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) ListVariantSizes(ctx context.Context, variantID uuid.UUID) ([]models.VariantSize, error) {
	var rows []models.VariantSize
	err := r.db.WithContext(ctx).
		Preload("Size").
		Preload("Stock").
		Where("variant_id = ?", variantID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return sizeOrder(rows[i]) < sizeOrder(rows[j])
	})
	return rows, nil
}

func sizeOrder(vs models.VariantSize) int {
	if vs.Size == nil {
		return 0
	}
	return vs.Size.SortOrder
}
