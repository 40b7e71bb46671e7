package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Availability is the read model for a single variant-size.
type Availability struct {
	VariantSizeID     uuid.UUID `json:"variant_size_id"`
	QuantityInStock   int       `json:"quantity_in_stock"`
	QuantityReserved  int       `json:"quantity_reserved"`
	Available         int       `json:"available"`
	LowStockThreshold int       `json:"low_stock_threshold"`
}

func toAvailability(stock *models.Stock) *Availability {
	return &Availability{
		VariantSizeID:     stock.VariantSizeID,
		QuantityInStock:   stock.QuantityInStock,
		QuantityReserved:  stock.QuantityReserved,
		Available:         stock.Available(),
		LowStockThreshold: stock.LowStockThreshold,
	}
}

// Service is the stock ledger. Reserve, Release and Consume join the caller's
// transaction; the rest manage their own.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
	ReserveStock(ctx context.Context, variantSizeID uuid.UUID, qty int) error
	Restock(ctx context.Context, actor *outbox.ActorRef, variantSizeID uuid.UUID, qty int) (*Availability, error)
	Get(ctx context.Context, variantSizeID uuid.UUID) (*Availability, error)
	ListLowStock(ctx context.Context) ([]models.Stock, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
}

// NewService builds the stock ledger. Metrics are optional.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, metrics: m}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserve requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)

	stock, err := repo.FindForUpdate(ctx, variantSizeID)
	if err != nil {
		return mapLookupError(err)
	}
	if available := stock.Available(); qty > available {
		s.metrics.ReservationRejected()
		return NewInsufficientStock(variantSizeID, qty, available)
	}

	ok, err := repo.IncrementReserved(ctx, variantSizeID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		// the row moved between the read and the guarded update
		current, err := repo.Find(ctx, variantSizeID)
		if err != nil {
			return mapLookupError(err)
		}
		s.metrics.ReservationRejected()
		return NewInsufficientStock(variantSizeID, qty, current.Available())
	}
	s.metrics.ReservationSucceeded()
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "release requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)
	if _, err := repo.FindForUpdate(ctx, variantSizeID); err != nil {
		return mapLookupError(err)
	}
	if err := repo.DecrementReserved(ctx, variantSizeID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	return nil
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "consume requires a transaction")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)
	stock, err := repo.FindForUpdate(ctx, variantSizeID)
	if err != nil {
		return mapLookupError(err)
	}
	ok, err := repo.Consume(ctx, variantSizeID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume stock")
	}
	if !ok {
		return NewInsufficientStock(variantSizeID, qty, stock.QuantityInStock)
	}
	return nil
}

func (s *service) ReserveStock(ctx context.Context, variantSizeID uuid.UUID, qty int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.Reserve(ctx, tx, variantSizeID, qty)
	})
}

func (s *service) Restock(ctx context.Context, actor *outbox.ActorRef, variantSizeID uuid.UUID, qty int) (*Availability, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	var out *Availability
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindForUpdate(ctx, variantSizeID); err != nil {
			return mapLookupError(err)
		}
		if err := repo.AddStock(ctx, variantSizeID, qty); err != nil {
			return mapLookupError(err)
		}
		stock, err := repo.Find(ctx, variantSizeID)
		if err != nil {
			return mapLookupError(err)
		}
		out = toAvailability(stock)
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRestocked,
			AggregateType: enums.AggregateStock,
			AggregateID:   variantSizeID,
			Actor:         actor,
			Data: payloads.StockRestockedEvent{
				VariantSizeID:   variantSizeID,
				Added:           qty,
				QuantityInStock: stock.QuantityInStock,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, variantSizeID uuid.UUID) (*Availability, error) {
	stock, err := s.repo.Find(ctx, variantSizeID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return toAvailability(stock), nil
}

func (s *service) ListLowStock(ctx context.Context) ([]models.Stock, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	return rows, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
}
