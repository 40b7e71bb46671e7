package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

// HandleWebhook applies a gateway notification. Unknown events, unknown
// gateway orders and redeliveries are acknowledged without effects.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhookSignature(s.webhookSecret, body, signature) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature verification failed")
	}
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}

	if envelope.Event != WebhookPaymentCaptured && envelope.Event != WebhookPaymentFailed {
		s.debug(ctx, map[string]any{"event": envelope.Event}, "webhook event ignored")
		return nil
	}
	entity := envelope.Payload.Payment.Entity
	fields := map[string]any{
		"event":              envelope.Event,
		"gateway_order_id":   entity.OrderID,
		"gateway_payment_id": entity.ID,
	}
	if strings.TrimSpace(entity.OrderID) == "" || strings.TrimSpace(entity.ID) == "" {
		s.warn(ctx, fields, "webhook payment entity incomplete")
		return nil
	}

	attempt, err := s.resolveAttempt(ctx, entity.OrderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.warn(ctx, fields, "webhook for unknown gateway order")
			return nil
		}
		return err
	}

	result := PaymentResult{
		OrderID:          attempt.OrderID,
		PaymentType:      attempt.PaymentType,
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		Success:          envelope.Event == WebhookPaymentCaptured,
		FailureReason:    entity.ErrorDescription,
	}
	if method, err := enums.ParsePaymentMethod(strings.ToLower(entity.Method)); err == nil {
		result.Method = &method
	}

	if _, err := s.RecordPaymentResult(ctx, result); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePaymentAlreadyProcessed) {
			s.debug(ctx, fields, "webhook redelivery ignored")
			return nil
		}
		return err
	}
	return nil
}

func (s *service) debug(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, fields), msg)
}

func (s *service) warn(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}
