package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox/payloads"
)

const (
	reasonInvalidSignature = "invalid signature"
	reasonDefaultFailure   = "payment failed"

	successGatewayPaymentIndex = "idx_payments_success_gateway_payment"
	sqliteGatewayPaymentColumn = "payments.gateway_payment_id"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderLedger is the slice of the order service payments drive.
type OrderLedger interface {
	GetOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	ApplyPaymentSuccess(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paymentType enums.PaymentType) (*models.Order, error)
}

// Service stages order payments through the gateway.
type Service interface {
	AmountDue(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType) (decimal.Decimal, error)
	InitiatePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID, paymentType enums.PaymentType) (*InitiatedPayment, error)
	RecordPaymentResult(ctx context.Context, result PaymentResult) (*models.Payment, error)
	VerifyPayment(ctx context.Context, actor auth.Actor, input VerifyInput) (*models.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	PaymentSummary(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Summary, error)
}

// ServiceParams wires the payment service. Metrics and Logger are optional;
// Policy defaults to a fifty-fifty split and Currency to INR.
type ServiceParams struct {
	Repository    Repository
	Orders        OrderLedger
	Gateway       Gateway
	DB            txRunner
	Outbox        outbox.Emitter
	Metrics       *metrics.LedgerMetrics
	Logger        *logger.Logger
	Policy        Policy
	Currency      string
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type service struct {
	repo          Repository
	orders        OrderLedger
	gateway       Gateway
	tx            txRunner
	outbox        outbox.Emitter
	metrics       *metrics.LedgerMetrics
	logg          *logger.Logger
	policy        Policy
	currency      string
	keyID         string
	keySecret     string
	webhookSecret string
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	policy := params.Policy
	if policy.AdvanceFraction.IsZero() {
		policy = DefaultPolicy()
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &service{
		repo:          params.Repository,
		orders:        params.Orders,
		gateway:       params.Gateway,
		tx:            params.DB,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          params.Logger,
		policy:        policy,
		currency:      currency,
		keyID:         params.KeyID,
		keySecret:     params.KeySecret,
		webhookSecret: params.WebhookSecret,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// AmountDue recomputes the order total from its lines and applies the policy
// against what has already been paid successfully.
func (s *service) AmountDue(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType) (decimal.Decimal, error) {
	if !paymentType.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}
	order, history, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.amountFor(order, history, paymentType)
}

// InitiatePayment creates the gateway order for a payment stage and records
// the attempt as initiated.
func (s *service) InitiatePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID, paymentType enums.PaymentType) (*InitiatedPayment, error) {
	if !paymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}
	if _, err := s.orders.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	order, history, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkStage(order, history, paymentType); err != nil {
		return nil, err
	}
	amount, err := s.amountFor(order, history, paymentType)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing is due for this payment stage")
	}

	remote, err := s.gateway.CreateRemoteOrder(ctx, ToMinorUnits(amount), s.currency, Receipt(order.OrderNumber, paymentType))
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	payment := &models.Payment{
		OrderID:        order.ID,
		Amount:         amount,
		PaymentType:    paymentType,
		Status:         enums.PaymentStatusInitiated,
		GatewayOrderID: &remote.ID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// stage may have moved while the gateway call was in flight
		current, currentHistory, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := checkStage(current, currentHistory, paymentType); err != nil {
			return err
		}
		if err := repo.Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return s.emit(ctx, tx, enums.EventPaymentInitiated, payment, actorRef(actor))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentRecorded(string(paymentType), string(enums.PaymentStatusInitiated))

	return &InitiatedPayment{
		Payment:        ToView(payment),
		GatewayOrderID: remote.ID,
		AmountMinor:    ToMinorUnits(amount),
		Currency:       s.currency,
		KeyID:          s.keyID,
	}, nil
}

// RecordPaymentResult stores a gateway outcome. A success is applied at most
// once per gateway payment id; failures are appended and never touch the order.
func (s *service) RecordPaymentResult(ctx context.Context, result PaymentResult) (*models.Payment, error) {
	if result.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !result.PaymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}
	result.GatewayOrderID = strings.TrimSpace(result.GatewayOrderID)
	result.GatewayPaymentID = strings.TrimSpace(result.GatewayPaymentID)
	if result.Success {
		if result.GatewayPaymentID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id required")
		}
		return s.recordSuccess(ctx, result)
	}
	return s.recordFailure(ctx, result)
}

func (s *service) recordSuccess(ctx context.Context, result PaymentResult) (*models.Payment, error) {
	var recorded *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByGatewayPaymentID(ctx, result.GatewayPaymentID, enums.PaymentStatusSuccess); err == nil {
			return alreadyProcessed(result.GatewayPaymentID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gateway payment")
		}

		order, history, err := s.load(ctx, repo, result.OrderID)
		if err != nil {
			return err
		}

		now := s.now()
		payment, err := s.settleOpenAttempt(ctx, repo, order, result, now)
		if err != nil {
			return err
		}
		if payment == nil {
			amount, err := s.amountFor(order, history, result.PaymentType)
			if err != nil {
				return err
			}
			payment = &models.Payment{
				OrderID:          order.ID,
				Amount:           amount,
				PaymentType:      result.PaymentType,
				Status:           enums.PaymentStatusSuccess,
				Method:           result.Method,
				GatewayOrderID:   optional(result.GatewayOrderID),
				GatewayPaymentID: optional(result.GatewayPaymentID),
				GatewaySignature: optional(result.Signature),
				PaidAt:           &now,
			}
			if err := repo.Create(ctx, payment); err != nil {
				if isDuplicateSuccess(err) {
					return alreadyProcessed(result.GatewayPaymentID)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
		}

		if _, err := s.orders.ApplyPaymentSuccess(ctx, tx, order.ID, payment.PaymentType); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventPaymentSucceeded, payment, nil); err != nil {
			return err
		}
		recorded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentRecorded(string(recorded.PaymentType), string(enums.PaymentStatusSuccess))
	return recorded, nil
}

// settleOpenAttempt marks the initiated attempt for the gateway order as paid.
// It returns nil when there is no open attempt to settle. The attempt's own
// payment type wins over the one reported by the caller.
func (s *service) settleOpenAttempt(ctx context.Context, repo Repository, order *models.Order, result PaymentResult, now time.Time) (*models.Payment, error) {
	if result.GatewayOrderID == "" {
		return nil, nil
	}
	open, err := repo.FindOpenByGatewayOrderID(ctx, order.ID, result.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open payment")
	}
	marked, err := repo.MarkSuccess(ctx, open.ID, SuccessUpdate{
		GatewayPaymentID: result.GatewayPaymentID,
		Signature:        optional(result.Signature),
		Method:           result.Method,
		PaidAt:           now,
	})
	if err != nil {
		if isDuplicateSuccess(err) {
			return nil, alreadyProcessed(result.GatewayPaymentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment success")
	}
	if !marked {
		return nil, alreadyProcessed(result.GatewayPaymentID)
	}
	payment, err := repo.FindByID(ctx, open.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return payment, nil
}

func (s *service) recordFailure(ctx context.Context, result PaymentResult) (*models.Payment, error) {
	reason := strings.TrimSpace(result.FailureReason)
	if reason == "" {
		reason = reasonDefaultFailure
	}

	var recorded *models.Payment
	duplicate := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if result.GatewayPaymentID != "" {
			existing, err := repo.FindByGatewayPaymentID(ctx, result.GatewayPaymentID, enums.PaymentStatusFailed)
			if err == nil {
				recorded = existing
				duplicate = true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check gateway payment")
			}
		}

		order, history, err := s.load(ctx, repo, result.OrderID)
		if err != nil {
			return err
		}

		paymentType := result.PaymentType
		var amount decimal.Decimal
		if open := s.openAttempt(ctx, repo, order.ID, result.GatewayOrderID); open != nil {
			paymentType = open.PaymentType
			amount = open.Amount
		} else {
			amount, err = s.amountFor(order, history, paymentType)
			if err != nil {
				return err
			}
		}

		payment := &models.Payment{
			OrderID:          order.ID,
			Amount:           amount,
			PaymentType:      paymentType,
			Status:           enums.PaymentStatusFailed,
			Method:           result.Method,
			GatewayOrderID:   optional(result.GatewayOrderID),
			GatewayPaymentID: optional(result.GatewayPaymentID),
			GatewaySignature: optional(result.Signature),
			FailureReason:    &reason,
		}
		if err := repo.Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		if err := s.emit(ctx, tx, enums.EventPaymentFailed, payment, nil); err != nil {
			return err
		}
		recorded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !duplicate {
		s.metrics.PaymentRecorded(string(recorded.PaymentType), string(enums.PaymentStatusFailed))
	}
	return recorded, nil
}

func (s *service) openAttempt(ctx context.Context, repo Repository, orderID uuid.UUID, gatewayOrderID string) *models.Payment {
	if gatewayOrderID == "" {
		return nil
	}
	open, err := repo.FindOpenByGatewayOrderID(ctx, orderID, gatewayOrderID)
	if err != nil {
		return nil
	}
	return open
}

// VerifyPayment checks the checkout signature before anything is settled. A
// bad signature is kept as a failed attempt.
func (s *service) VerifyPayment(ctx context.Context, actor auth.Actor, input VerifyInput) (*models.Payment, error) {
	order, err := s.orders.GetOrder(ctx, actor, input.OrderID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.resolveAttempt(ctx, strings.TrimSpace(input.GatewayOrderID))
	if err != nil {
		return nil, err
	}
	if attempt.OrderID != order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	var method *enums.PaymentMethod
	if input.Method != nil {
		parsed, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(*input.Method)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		method = &parsed
	}

	result := PaymentResult{
		OrderID:          order.ID,
		PaymentType:      attempt.PaymentType,
		GatewayOrderID:   input.GatewayOrderID,
		GatewayPaymentID: input.GatewayPaymentID,
		Signature:        input.Signature,
		Method:           method,
	}
	if !VerifySignature(s.keySecret, input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		result.FailureReason = reasonInvalidSignature
		if _, err := s.recordFailure(ctx, result); err != nil {
			return nil, err
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":         order.ID.String(),
				"gateway_order_id": input.GatewayOrderID,
			})
			s.logg.Warn(logCtx, "payment signature rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "payment signature verification failed")
	}
	result.Success = true
	return s.RecordPaymentResult(ctx, result)
}

// PaymentSummary reports how far an order has been paid.
func (s *service) PaymentSummary(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Summary, error) {
	if _, err := s.orders.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	order, history, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	total := order.Total()
	paid := paidSoFar(history)
	outstanding := total.Sub(paid)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	summary := &Summary{
		OrderID:     order.ID,
		Total:       total,
		AdvancePaid: hasSuccess(history, enums.PaymentTypeAdvance),
		FinalPaid:   hasSuccess(history, enums.PaymentTypeFinal),
		FullyPaid:   hasSuccess(history, enums.PaymentTypeFull) || !outstanding.IsPositive(),
		TotalPaid:   paid,
		TotalDue:    total,
		Outstanding: outstanding,
		Payments:    make([]PaymentView, 0, len(history)),
	}
	for i := range history {
		summary.Payments = append(summary.Payments, ToView(&history[i]))
	}
	return summary, nil
}

func (s *service) resolveAttempt(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	attempt, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return attempt, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, []models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	history, err := repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return order, history, nil
}

func (s *service) amountFor(order *models.Order, history []models.Payment, paymentType enums.PaymentType) (decimal.Decimal, error) {
	amount, err := s.policy.AmountDue(order.Total(), paidSoFar(history), paymentType)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute amount due")
	}
	return amount, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payment *models.Payment, actor *outbox.ActorRef) error {
	data := payloads.PaymentEvent{
		PaymentID:   payment.ID,
		OrderID:     payment.OrderID,
		PaymentType: payment.PaymentType,
		Status:      payment.Status,
		Amount:      payment.Amount,
	}
	if payment.GatewayOrderID != nil {
		data.GatewayOrderID = *payment.GatewayOrderID
	}
	if payment.GatewayPaymentID != nil {
		data.GatewayPaymentID = *payment.GatewayPaymentID
	}
	if payment.FailureReason != nil {
		data.FailureReason = *payment.FailureReason
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		Data:          data,
		OccurredAt:    s.now(),
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("emit %s", eventType))
	}
	return nil
}

// checkStage enforces the order in which stages may be paid.
func checkStage(order *models.Order, history []models.Payment, paymentType enums.PaymentType) error {
	advancePaid := hasSuccess(history, enums.PaymentTypeAdvance)
	finalPaid := hasSuccess(history, enums.PaymentTypeFinal)
	fullPaid := hasSuccess(history, enums.PaymentTypeFull)

	switch paymentType {
	case enums.PaymentTypeAdvance:
		if order.Status != enums.OrderStatusPending {
			return stageConflict("advance payment requires a pending order")
		}
		if advancePaid || fullPaid {
			return stageConflict("advance payment already settled")
		}
	case enums.PaymentTypeFinal:
		if !advancePaid {
			return stageConflict("final payment requires a settled advance")
		}
		if finalPaid || fullPaid {
			return stageConflict("final payment already settled")
		}
		switch order.Status {
		case enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusReadyForDispatch:
		default:
			return stageConflict(fmt.Sprintf("final payment not accepted while order is %s", order.Status))
		}
	case enums.PaymentTypeFull:
		if order.Status != enums.OrderStatusPending {
			return stageConflict("full payment requires a pending order")
		}
		if advancePaid || finalPaid || fullPaid {
			return stageConflict("order already has a settled payment")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}
	return nil
}

// Receipt is the merchant reference sent with the gateway order.
func Receipt(orderNumber string, paymentType enums.PaymentType) string {
	return fmt.Sprintf("order_%s_%s", orderNumber, paymentType)
}

func paidSoFar(history []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range history {
		if p.IsSuccess() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func hasSuccess(history []models.Payment, paymentType enums.PaymentType) bool {
	for _, p := range history {
		if p.IsSuccess() && p.PaymentType == paymentType {
			return true
		}
	}
	return false
}

func isDuplicateSuccess(err error) bool {
	return db.IsUniqueViolation(err, successGatewayPaymentIndex) || db.IsUniqueViolation(err, sqliteGatewayPaymentColumn)
}

func alreadyProcessed(gatewayPaymentID string) error {
	return pkgerrors.New(pkgerrors.CodePaymentAlreadyProcessed, "payment already processed").
		WithDetails(map[string]string{"gateway_payment_id": gatewayPaymentID})
}

func stageConflict(msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg)
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
