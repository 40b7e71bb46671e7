package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/api/responses"
	"github.com/angelmondragon/shirtforge-backend/api/validators"
	"github.com/angelmondragon/shirtforge-backend/internal/orders"
	"github.com/angelmondragon/shirtforge-backend/internal/tax"
	"github.com/angelmondragon/shirtforge-backend/pkg/auth"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/pagination"
)

type orderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input orders.CreateOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input orders.UpdateStatusInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params) (*orders.OrderList, error)
}

type amountDueService interface {
	AmountDue(ctx context.Context, orderID uuid.UUID, paymentType enums.PaymentType) (decimal.Decimal, error)
}

type invoiceService interface {
	InvoiceSummary(ctx context.Context, order *models.Order) (*tax.InvoiceSummary, error)
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type amountDueResponse struct {
	OrderID     uuid.UUID         `json:"order_id"`
	PaymentType enums.PaymentType `json:"payment_type"`
	Amount      decimal.Decimal   `json:"amount"`
}

// OrderCreate converts the caller's active cart into an order.
func OrderCreate(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var input orders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CreateOrder(r.Context(), actor.UserID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.ToView(order))
	}
}

// OrderList pages through the caller's orders; admins see every order.
func OrderList(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		list, err := svc.ListOrders(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
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
		order, err := svc.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(order))
	}
}

// OrderCancel cancels an order and returns its reserved stock. The body is optional.
func OrderCancel(svc orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
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
		var input cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &input); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		order, err := svc.CancelOrder(r.Context(), actor, orderID, validators.SanitizeString(input.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(order))
	}
}

// OrderAmountDue quotes what the requested payment stage would charge now.
func OrderAmountDue(svc orderService, payments amountDueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || payments == nil {
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
		paymentType, err := enums.ParsePaymentType(strings.TrimSpace(r.URL.Query().Get("type")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type").WithDetails(map[string]any{"field": "type"}))
			return
		}
		if _, err := svc.GetOrder(r.Context(), actor, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := payments.AmountDue(r.Context(), orderID, paymentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, amountDueResponse{OrderID: orderID, PaymentType: paymentType, Amount: amount})
	}
}

// OrderInvoiceSummary renders subtotal, tax and grand total for an order.
func OrderInvoiceSummary(svc orderService, invoices invoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || invoices == nil {
			unavailable(w, r, logg, "invoice service")
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
		order, err := svc.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := invoices.InvoiceSummary(r.Context(), order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
