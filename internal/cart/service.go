package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type taxRater interface {
	ActiveRate(ctx context.Context, at time.Time) (decimal.Decimal, error)
}

// AddItemInput adds quantity units of a variant-size to the cart.
type AddItemInput struct {
	VariantSizeID uuid.UUID `json:"variant_size_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
}

// Service exposes cart operations. Every mutation refreshes last_activity_at.
type Service interface {
	GetActiveCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartView, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartView, error)
	ValidateStock(ctx context.Context, userID uuid.UUID) (*StockValidation, error)
	AbandonStale(ctx context.Context, before time.Time, limit int) (int, error)
}

type service struct {
	repo    CartRepository
	catalog catalog.Repository
	tx      txRunner
	tax     taxRater
	outbox  outbox.Emitter
	now     func() time.Time
}

func NewService(repo CartRepository, catalogRepo catalog.Repository, tx txRunner, rater taxRater, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if rater == nil {
		return nil, fmt.Errorf("tax rater required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    repo,
		catalog: catalogRepo,
		tx:      tx,
		tax:     rater,
		outbox:  emitter,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetActiveCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		cartID = c.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.VariantSizeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant_size_id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		cartID = c.ID

		unit, err := s.catalog.WithTx(tx).FindVariantSize(ctx, input.VariantSizeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "variant size not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant size")
		}
		if unit.Variant == nil || !unit.Variant.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant is not available for sale")
		}

		existing, err := repo.FindItemByVariantSize(ctx, c.ID, input.VariantSizeID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		wanted := input.Quantity
		if existing != nil {
			wanted += existing.Quantity
		}
		if available := availableOf(unit); wanted > available {
			return inventory.NewInsufficientStock(input.VariantSizeID, wanted, available)
		}

		if existing != nil {
			if err := repo.UpdateItemQuantity(ctx, existing.ID, wanted); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		} else {
			item := &models.CartItem{CartID: c.ID, VariantSizeID: input.VariantSizeID, Quantity: wanted}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		}
		return s.touch(ctx, repo, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, item, err := s.findOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		cartID = c.ID

		unit, err := s.catalog.WithTx(tx).FindVariantSize(ctx, item.VariantSizeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant size")
		}
		if available := availableOf(unit); qty > available {
			return inventory.NewInsufficientStock(item.VariantSizeID, qty, available)
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.touch(ctx, repo, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error) {
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, item, err := s.findOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		cartID = c.ID
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return s.touch(ctx, repo, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		cartID = c.ID
		if err := repo.DeleteItems(ctx, c.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return s.touch(ctx, repo, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, cartID)
}

func (s *service) ValidateStock(ctx context.Context, userID uuid.UUID) (*StockValidation, error) {
	view, err := s.GetActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := &StockValidation{Valid: true, Issues: []LineIssue{}}
	for _, line := range view.Items {
		if line.Quantity <= line.Available {
			continue
		}
		result.Valid = false
		result.Issues = append(result.Issues, LineIssue{
			ItemID:        line.ItemID,
			VariantSizeID: line.VariantSizeID,
			SKU:           line.SKU,
			Requested:     line.Quantity,
			Available:     line.Available,
			Reason:        fmt.Sprintf("only %d available", max(line.Available, 0)),
		})
	}
	return result, nil
}

// AbandonStale marks active carts idle since before as abandoned, one short
// transaction per cart. Carts touched or checked out meanwhile are skipped.
func (s *service) AbandonStale(ctx context.Context, before time.Time, limit int) (int, error) {
	stale, err := s.repo.ListStaleActive(ctx, before, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale carts")
	}
	abandoned := 0
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return abandoned, err
		}
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, c.ID)
			if err != nil {
				return err
			}
			if current.Status != enums.CartStatusActive || !current.LastActivityAt.Before(before) {
				return nil
			}
			ok, err := repo.TransitionStatus(ctx, c.ID, enums.CartStatusActive, enums.CartStatusAbandoned)
			if err != nil || !ok {
				return err
			}
			changed = true
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCartAbandoned,
				AggregateType: enums.AggregateCart,
				AggregateID:   c.ID,
				Data: payloads.CartAbandonedEvent{
					CartID:         c.ID,
					UserID:         c.UserID,
					LastActivityAt: current.LastActivityAt,
				},
			})
		})
		if err != nil {
			return abandoned, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon cart")
		}
		if changed {
			abandoned++
		}
	}
	return abandoned, nil
}

// getOrCreate returns the user's active cart inside tx, creating it when absent.
// A concurrent creator trips the one-active-cart index; the winner's row is re-read.
func (s *service) getOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	repo := s.repo.WithTx(tx)
	c, err := repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}

	if err := tx.SavePoint("active_cart").Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "savepoint active cart")
	}
	c = &models.Cart{UserID: userID, Status: enums.CartStatusActive, LastActivityAt: s.now()}
	if err := repo.Create(ctx, c); err != nil {
		if db.IsUniqueViolation(err, "idx_carts_one_active_per_user") || db.IsUniqueViolation(err, "carts.user_id") {
			if rbErr := tx.RollbackTo("active_cart").Error; rbErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback active cart")
			}
			return repo.FindActiveByUser(ctx, userID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return c, nil
}

func (s *service) findOwnedItem(ctx context.Context, repo CartRepository, userID, itemID uuid.UUID) (*models.Cart, *models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	c, err := repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}
	item, err := repo.FindItem(ctx, c.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return c, item, nil
}

func (s *service) touch(ctx context.Context, repo CartRepository, cartID uuid.UUID) error {
	if err := repo.Touch(ctx, cartID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	return nil
}

func (s *service) load(ctx context.Context, cartID uuid.UUID) (*CartView, error) {
	c, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	rate, err := s.tax.ActiveRate(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return buildView(c, rate), nil
}

func availableOf(unit *models.VariantSize) int {
	if unit == nil || unit.Stock == nil {
		return 0
	}
	return unit.Stock.Available()
}
