package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shirtforge-backend/api/responses"
	"github.com/angelmondragon/shirtforge-backend/api/validators"
	"github.com/angelmondragon/shirtforge-backend/internal/addresses"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/pkg/db/models"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
)

type catalogService interface {
	GetVariantSize(ctx context.Context, variantSizeID uuid.UUID) (*catalog.VariantSizeView, error)
	ListVariants(ctx context.Context) ([]catalog.VariantView, error)
}

type addressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input addresses.CreateInput) (*models.Address, error)
}

func CatalogVariants(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		variants, err := svc.ListVariants(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, variants)
	}
}

// CatalogVariantSize returns one sellable unit with its resolved price and availability.
func CatalogVariantSize(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		variantSizeID, err := validators.ParseUUIDParam(r, "variantSizeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetVariantSize(r.Context(), variantSizeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func AddressList(svc addressService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "address service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AddressCreate(svc addressService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "address service")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var input addresses.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address, err := svc.Create(r.Context(), actor.UserID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, address)
	}
}
