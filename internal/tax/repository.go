package tax

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
)

type Repository interface {
	FindActive(ctx context.Context, at time.Time) (*models.TaxConfiguration, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindActive returns the most recent active configuration in effect at at.
func (r *repository) FindActive(ctx context.Context, at time.Time) (*models.TaxConfiguration, error) {
	var cfg models.TaxConfiguration
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND effective_from <= ?", true, at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
