package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
)

// SuccessUpdate carries the gateway data stamped on a settled attempt.
type SuccessUpdate struct {
	GatewayPaymentID string
	Signature        *string
	Method           *enums.PaymentMethod
	PaidAt           time.Time
}

// Repository persists payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string, status enums.PaymentStatus) (*models.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindOpenByGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) (*models.Payment, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, update SuccessUpdate) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
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

// FindOrder loads the order with its snapshot lines for amount math.
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

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string, status enums.PaymentStatus) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ? AND payment_status = ?", gatewayPaymentID, status).
		Order("created_at ASC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByGatewayOrderID returns the first attempt recorded for a gateway order,
// which is the initiated row carrying the order and payment type.
func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		Order("created_at ASC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindOpenByGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND gateway_order_id = ? AND payment_status IN ?", orderID, gatewayOrderID,
			[]enums.PaymentStatus{enums.PaymentStatusInitiated, enums.PaymentStatusPending}).
		Order("created_at ASC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkSuccess settles an open attempt. It reports false when the row was no
// longer open.
func (r *repository) MarkSuccess(ctx context.Context, id uuid.UUID, update SuccessUpdate) (bool, error) {
	fields := map[string]any{
		"payment_status":     enums.PaymentStatusSuccess,
		"gateway_payment_id": update.GatewayPaymentID,
		"paid_at":            update.PaidAt,
		"updated_at":         time.Now().UTC(),
	}
	if update.Signature != nil {
		fields["gateway_signature"] = *update.Signature
	}
	if update.Method != nil {
		fields["payment_method"] = *update.Method
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND payment_status IN ?", id,
			[]enums.PaymentStatus{enums.PaymentStatusInitiated, enums.PaymentStatusPending}).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
