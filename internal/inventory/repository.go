package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
)

// Repository persists stock rows. Mutations expect to run inside the caller's
// transaction; use WithTx to bind one.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, variantSizeID uuid.UUID) (*models.Stock, error)
	FindForUpdate(ctx context.Context, variantSizeID uuid.UUID) (*models.Stock, error)
	IncrementReserved(ctx context.Context, variantSizeID uuid.UUID, qty int) (bool, error)
	DecrementReserved(ctx context.Context, variantSizeID uuid.UUID, qty int) error
	Consume(ctx context.Context, variantSizeID uuid.UUID, qty int) (bool, error)
	AddStock(ctx context.Context, variantSizeID uuid.UUID, qty int) error
	ListLowStock(ctx context.Context) ([]models.Stock, error)
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

func (r *repository) Find(ctx context.Context, variantSizeID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	if err := r.db.WithContext(ctx).Where("variant_size_id = ?", variantSizeID).First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

// FindForUpdate takes a row lock held until the surrounding transaction ends.
func (r *repository) FindForUpdate(ctx context.Context, variantSizeID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_size_id = ?", variantSizeID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// IncrementReserved reserves qty only while enough units remain available.
// It reports false when the guard rejected the update.
func (r *repository) IncrementReserved(ctx context.Context, variantSizeID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("variant_size_id = ? AND quantity_in_stock - quantity_reserved >= ?", variantSizeID, qty).
		Update("quantity_reserved", gorm.Expr("quantity_reserved + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementReserved lowers the reservation, clamped at zero.
func (r *repository) DecrementReserved(ctx context.Context, variantSizeID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("variant_size_id = ?", variantSizeID).
		Update("quantity_reserved", gorm.Expr("CASE WHEN quantity_reserved > ? THEN quantity_reserved - ? ELSE 0 END", qty, qty)).
		Error
}

// Consume removes shipped units from both stock and reservation.
func (r *repository) Consume(ctx context.Context, variantSizeID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("variant_size_id = ? AND quantity_in_stock >= ?", variantSizeID, qty).
		Updates(map[string]any{
			"quantity_in_stock": gorm.Expr("quantity_in_stock - ?", qty),
			"quantity_reserved": gorm.Expr("CASE WHEN quantity_reserved > ? THEN quantity_reserved - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddStock(ctx context.Context, variantSizeID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("variant_size_id = ?", variantSizeID).
		Update("quantity_in_stock", gorm.Expr("quantity_in_stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]models.Stock, error) {
	var rows []models.Stock
	err := r.db.WithContext(ctx).
		Where("quantity_in_stock - quantity_reserved <= low_stock_threshold").
		Order("variant_size_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
