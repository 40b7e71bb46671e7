package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shirtforge-backend/api/responses"
	"github.com/angelmondragon/shirtforge-backend/api/validators"
	"github.com/angelmondragon/shirtforge-backend/internal/payments"
	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
)

// RazorpaySignatureHeader carries the webhook body HMAC.
const RazorpaySignatureHeader = "X-Razorpay-Signature"

const maxWebhookBody = 1 << 20

type paymentService interface {
	InitiatePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID, paymentType enums.PaymentType) (*payments.InitiatedPayment, error)
	VerifyPayment(ctx context.Context, actor auth.Actor, input payments.VerifyInput) (*models.Payment, error)
	PaymentSummary(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*payments.Summary, error)
}

type webhookHandler interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// PaymentInitiate opens a gateway order for the requested payment stage.
func PaymentInitiate(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payment service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input payments.InitiatePaymentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		initiated, err := svc.InitiatePayment(r.Context(), actor, orderID, input.PaymentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, initiated)
	}
}

// PaymentVerify checks the checkout callback signature and records the outcome.
func PaymentVerify(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payment service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var input payments.VerifyInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.VerifyPayment(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments.ToView(payment))
	}
}

func PaymentSummary(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payment service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.PaymentSummary(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// RazorpayWebhook accepts gateway notifications. The raw body is passed
// through untouched because the signature covers its exact bytes.
func RazorpayWebhook(svc webhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "webhook handler")
			return
		}
		signature := strings.TrimSpace(r.Header.Get(RazorpaySignatureHeader))
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "missing signature"))
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}
		if err := svc.HandleWebhook(r.Context(), body, signature); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
