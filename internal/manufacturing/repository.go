package manufacturing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
)

// Repository reads bills of materials and mutates raw material balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SpecsForUnits(ctx context.Context, variantSizeIDs []uuid.UUID) ([]models.ManufacturingSpecification, error)
	FindMaterials(ctx context.Context, ids []uuid.UUID, lock bool) ([]models.RawMaterial, error)
	Deduct(ctx context.Context, materialID uuid.UUID, qty decimal.Decimal) (bool, error)
	MarkDeducted(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	ListLow(ctx context.Context) ([]models.RawMaterial, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SpecsForUnits(ctx context.Context, variantSizeIDs []uuid.UUID) ([]models.ManufacturingSpecification, error) {
	if len(variantSizeIDs) == 0 {
		return nil, nil
	}
	var rows []models.ManufacturingSpecification
	err := r.db.WithContext(ctx).
		Where("variant_size_id IN ?", variantSizeIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindMaterials loads materials ordered by id. With lock set the rows stay
// locked until the surrounding transaction ends.
func (r *repository) FindMaterials(ctx context.Context, ids []uuid.UUID, lock bool) ([]models.RawMaterial, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []models.RawMaterial
	if err := q.Where("id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Deduct lowers the balance only while enough remains.
func (r *repository) Deduct(ctx context.Context, materialID uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RawMaterial{}).
		Where("id = ? AND current_quantity >= ?", materialID, qty).
		Updates(map[string]any{
			"current_quantity": gorm.Expr("current_quantity - ?", qty),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkDeducted stamps the order once. It reports false when it was already stamped.
func (r *repository) MarkDeducted(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND materials_deducted_at IS NULL", orderID).
		Update("materials_deducted_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListLow(ctx context.Context) ([]models.RawMaterial, error) {
	var rows []models.RawMaterial
	err := r.db.WithContext(ctx).
		Where("current_quantity <= reorder_level").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
