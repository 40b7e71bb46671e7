package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shirtforge-backend/api/responses"
	"github.com/angelmondragon/shirtforge-backend/api/validators"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/internal/orders"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
)

type stockService interface {
	Restock(ctx context.Context, actor *outbox.ActorRef, variantSizeID uuid.UUID, qty int) (*inventory.Availability, error)
	Get(ctx context.Context, variantSizeID uuid.UUID) (*inventory.Availability, error)
	ListLowStock(ctx context.Context) ([]models.Stock, error)
}

type materialsService interface {
	MaterialRequirements(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	CheckFeasibility(ctx context.Context, orderID uuid.UUID) (*manufacturing.Feasibility, error)
	DeductRawMaterials(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID) (*manufacturing.Feasibility, error)
	ListLowMaterials(ctx context.Context) ([]models.RawMaterial, error)
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type materialRequirementsResponse struct {
	OrderID      uuid.UUID                     `json:"order_id"`
	Requirements map[uuid.UUID]decimal.Decimal `json:"requirements"`
}

// AdminOrderStatus applies an operator-driven lifecycle transition.
func AdminOrderStatus(svc orderService, logg *logger.Logger) http.HandlerFunc {
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
		var input orders.UpdateStatusInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateStatus(r.Context(), actor, orderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.ToView(order))
	}
}

func AdminRestock(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "stock service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		variantSizeID, err := validators.ParseUUIDParam(r, "variantSizeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input restockRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availability, err := svc.Restock(r.Context(), actorRef(actor), variantSizeID, input.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

func AdminStockDetail(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "stock service")
			return
		}
		variantSizeID, err := validators.ParseUUIDParam(r, "variantSizeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availability, err := svc.Get(r.Context(), variantSizeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

// AdminLowStock lists stock rows at or below their alert threshold.
func AdminLowStock(svc stockService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "stock service")
			return
		}
		rows, err := svc.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func AdminOrderMaterials(svc materialsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "materials service")
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requirements, err := svc.MaterialRequirements(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, materialRequirementsResponse{OrderID: orderID, Requirements: requirements})
	}
}

func AdminOrderFeasibility(svc materialsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "materials service")
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckFeasibility(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminDeductMaterials draws production inputs for an order exactly once.
func AdminDeductMaterials(svc materialsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "materials service")
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
		result, err := svc.DeductRawMaterials(r.Context(), actorRef(actor), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminLowMaterials(svc materialsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "materials service")
			return
		}
		rows, err := svc.ListLowMaterials(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
