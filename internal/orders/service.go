package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shirtforge-backend/pkg/pagination"
)

const orderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressOwner interface {
	EnsureOwned(ctx context.Context, tx *gorm.DB, userID, addressID uuid.UUID) (*models.Address, error)
}

// StockLedger is the slice of the inventory service orders need. Every call
// joins the caller's transaction.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
	Consume(ctx context.Context, tx *gorm.DB, variantSizeID uuid.UUID, qty int) error
}

// Service assembles orders from carts and drives their lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderList, error)
	OrderTotal(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	// ApplyPaymentSuccess advances the order after a settled payment. It runs
	// inside the payment's transaction.
	ApplyPaymentSuccess(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentType enums.PaymentType) (*models.Order, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository Repository
	Carts      cart.CartRepository
	Addresses  addressOwner
	Stock      StockLedger
	DB         txRunner
	Outbox     outbox.Emitter
	Metrics    *metrics.LedgerMetrics
	Logger     *logger.Logger
}

type service struct {
	repo      Repository
	carts     cart.CartRepository
	addresses addressOwner
	stock     StockLedger
	tx        txRunner
	outbox    outbox.Emitter
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service. Metrics and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      params.Repository,
		carts:     params.Carts,
		addresses: params.Addresses,
		stock:     params.Stock,
		tx:        params.DB,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder converts the user's active cart into a pending order. Stock for
// every line is reserved in the same transaction; the first shortage aborts it.
func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.DeliveryAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		active, err := carts.FindActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return emptyCart()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
		}
		if len(active.Items) == 0 {
			return emptyCart()
		}
		if _, err := s.addresses.EnsureOwned(ctx, tx, userID, input.DeliveryAddressID); err != nil {
			return err
		}

		now := s.now()
		order := &models.Order{
			ID:                uuid.New(),
			OrderNumber:       NewOrderNumber(now),
			UserID:            userID,
			DeliveryAddressID: input.DeliveryAddressID,
			Status:            enums.OrderStatusPending,
			Notes:             trimmed(input.Notes),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		lines := make([]payloads.OrderLine, 0, len(active.Items))
		for i, item := range active.Items {
			unit := item.VariantSize
			if unit == nil || unit.Variant == nil || unit.Size == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "cart line is missing catalog data")
			}
			if err := s.stock.Reserve(ctx, tx, item.VariantSizeID, item.Quantity); err != nil {
				return err
			}
			price := catalog.UnitPrice(unit.Variant.BasePrice, unit.Size.MarkupPercentage)
			order.Items = append(order.Items, models.OrderItem{
				OrderID:       order.ID,
				VariantSizeID: item.VariantSizeID,
				SKU:           unit.Variant.SKU,
				SizeName:      unit.Size.Name,
				Quantity:      item.Quantity,
				UnitPrice:     price,
				CreatedAt:     now.Add(time.Duration(i) * time.Microsecond),
			})
			lines = append(lines, payloads.OrderLine{
				VariantSizeID: item.VariantSizeID,
				Quantity:      item.Quantity,
				UnitPrice:     price,
			})
		}

		if err := s.insert(ctx, tx, order); err != nil {
			return err
		}

		moved, err := carts.TransitionStatus(ctx, active.ID, enums.CartStatusActive, enums.CartStatusCheckedOut)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check out cart")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart was checked out concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      userID,
				CartID:      active.ID,
				Total:       order.Total(),
				Lines:       lines,
			},
			OccurredAt: now,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(enums.OrderStatusPending))
	return created, nil
}

// insert retries with a fresh order number when the generated one collides.
func (s *service) insert(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	for attempt := 1; ; attempt++ {
		if err := tx.SavePoint("order_number").Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "savepoint order number")
		}
		err := repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		collided := db.IsUniqueViolation(err, "orders_order_number_key") || db.IsUniqueViolation(err, "orders.order_number")
		if !collided || attempt == orderNumberAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if rbErr := tx.RollbackTo("order_number").Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback order number")
		}
		order.OrderNumber = NewOrderNumber(s.now())
	}
}

// CancelOrder cancels an order owned by the actor (or any order for admins)
// and releases its reservations.
func (s *service) CancelOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.findAccessible(ctx, s.repo.WithTx(tx), actor, orderID)
		if err != nil {
			return err
		}
		result, err = s.cancel(ctx, tx, order, reason, actorRef(actor))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(result.Status))
	return result, nil
}

// UpdateStatus applies an admin lifecycle change.
func (s *service) UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	to := input.Status
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.find(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		ref := actorRef(actor)
		if to == enums.OrderStatusCancelled {
			result, err = s.cancel(ctx, tx, order, input.Reason, ref)
			return err
		}
		if !adminTargets[to] || !CanTransition(order.Status, to) {
			return invalidTransition(order.Status, to)
		}

		fields := map[string]any{}
		if tracking := trimmed(input.TrackingNumber); tracking != nil {
			fields["tracking_number"] = *tracking
		}
		switch to {
		case enums.OrderStatusDispatched:
			result, err = s.dispatch(ctx, tx, order, fields, triggerAdmin, ref)
			return err
		case enums.OrderStatusDelivered:
			fields["delivered_at"] = s.now()
		}
		result, err = s.transition(ctx, tx, order, to, fields, triggerAdmin, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(result.Status))
	return result, nil
}

func (s *service) ApplyPaymentSuccess(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentType enums.PaymentType) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment application requires a transaction")
	}
	order, err := s.find(ctx, s.repo.WithTx(tx), orderID)
	if err != nil {
		return nil, err
	}

	var next *models.Order
	switch {
	case order.Status == enums.OrderStatusPending &&
		(paymentType == enums.PaymentTypeAdvance || paymentType == enums.PaymentTypeFull):
		next, err = s.transition(ctx, tx, order, enums.OrderStatusConfirmed,
			map[string]any{"confirmed_at": s.now()}, triggerPayment, nil)
	case order.Status == enums.OrderStatusReadyForDispatch &&
		(paymentType == enums.PaymentTypeFinal || paymentType == enums.PaymentTypeFull):
		next, err = s.dispatch(ctx, tx, order, map[string]any{}, triggerPayment, nil)
	default:
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":     order.ID.String(),
				"order_status": order.Status,
				"payment_type": paymentType,
			})
			s.logg.Info(logCtx, "payment settled without a status change")
		}
		return order, nil
	}
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(next.Status))
	return next, nil
}

func (s *service) GetOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.findAccessible(ctx, s.repo, actor, orderID)
}

// ListOrders pages the actor's orders; admins see every order.
func (s *service) ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderList, error) {
	var scope *uuid.UUID
	if !actor.IsAdmin() {
		if actor.UserID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
		}
		scope = &actor.UserID
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, scope, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderView, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, ToView(&rows[i]))
	}
	return list, nil
}

// OrderTotal is the sum of quantity times snapshot unit price.
func (s *service) OrderTotal(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	order, err := s.find(ctx, s.repo, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Total(), nil
}

func (s *service) cancel(ctx context.Context, tx *gorm.DB, order *models.Order, reason string, actor *outbox.ActorRef) (*models.Order, error) {
	if !Cancellable(order.Status) {
		return nil, invalidTransition(order.Status, enums.OrderStatusCancelled)
	}
	now := s.now()
	released := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		if err := s.stock.Release(ctx, tx, item.VariantSizeID, item.Quantity); err != nil {
			return nil, err
		}
		released = append(released, payloads.OrderLine{
			VariantSizeID: item.VariantSizeID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
		})
	}

	reason = strings.TrimSpace(reason)
	fields := map[string]any{"cancelled_at": now}
	if reason != "" {
		fields["cancellation_reason"] = appendReason(order.CancellationReason, reason)
	}

	from := order.Status
	moved, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, enums.OrderStatusCancelled, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PreviousState: string(from),
			Reason:        reason,
			Released:      released,
			CancelledAt:   now,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled")
	}
	return s.find(ctx, s.repo.WithTx(tx), order.ID)
}

// dispatch requires a settled final (or full) payment and turns every line's
// reservation into a shipment.
func (s *service) dispatch(ctx context.Context, tx *gorm.DB, order *models.Order, fields map[string]any, trigger string, actor *outbox.ActorRef) (*models.Order, error) {
	if !CanTransition(order.Status, enums.OrderStatusDispatched) {
		return nil, invalidTransition(order.Status, enums.OrderStatusDispatched)
	}
	paid, err := s.repo.WithTx(tx).CountSuccessfulPayments(ctx, order.ID, enums.PaymentTypeFinal, enums.PaymentTypeFull)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check final payment")
	}
	if paid == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "final payment required before dispatch").
			WithDetails(map[string]string{"from": string(order.Status), "to": string(enums.OrderStatusDispatched)})
	}
	for _, item := range order.Items {
		if err := s.stock.Consume(ctx, tx, item.VariantSizeID, item.Quantity); err != nil {
			return nil, err
		}
	}
	fields["dispatched_at"] = s.now()
	return s.transition(ctx, tx, order, enums.OrderStatusDispatched, fields, trigger, actor)
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, fields map[string]any, trigger string, actor *outbox.ActorRef) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	from := order.Status
	moved, err := repo.UpdateStatus(ctx, order.ID, from, to, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
	}

	now := s.now()
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			From:       from,
			To:         to,
			Trigger:    trigger,
			OccurredAt: now,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed")
	}
	return s.find(ctx, repo, order.ID)
}

func (s *service) find(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// findAccessible hides orders the actor may not see behind NOT_FOUND.
func (s *service) findAccessible(ctx context.Context, repo Repository, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.find(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

func appendReason(existing *string, reason string) string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return reason
	}
	return *existing + "; " + reason
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
