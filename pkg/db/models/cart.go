package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// Cart is a user's shopping cart. At most one cart per user is active.
type Cart struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_carts_one_active_per_user,where:status = 'active'"`
	Status         enums.CartStatus `gorm:"column:status;type:varchar(32);not null;default:'active'"`
	LastActivityAt time.Time        `gorm:"column:last_activity_at;not null"`
	Items          []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem is one variant-size line in a cart.
type CartItem struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID    `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant_size"`
	VariantSizeID uuid.UUID    `gorm:"column:variant_size_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant_size"`
	Quantity      int          `gorm:"column:quantity;not null"`
	VariantSize   *VariantSize `gorm:"foreignKey:VariantSizeID"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
