package inventory

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/shirtforge-backend/pkg/errors"
)

// InsufficientStock is attached as details to INSUFFICIENT_STOCK errors.
type InsufficientStock struct {
	VariantSizeID uuid.UUID `json:"variant_size_id"`
	Requested     int       `json:"requested"`
	Available     int       `json:"available"`
}

// NewInsufficientStock builds the INSUFFICIENT_STOCK error for a shortfall.
func NewInsufficientStock(variantSizeID uuid.UUID, requested, available int) error {
	if available < 0 {
		available = 0
	}
	msg := fmt.Sprintf("insufficient stock for %s: requested %d, available %d", variantSizeID, requested, available)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(InsufficientStock{
		VariantSizeID: variantSizeID,
		Requested:     requested,
		Available:     available,
	})
}

// AsInsufficientStock extracts the shortage details from err, if any.
func AsInsufficientStock(err error) (InsufficientStock, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return InsufficientStock{}, false
	}
	details, ok := typed.Details().(InsufficientStock)
	return details, ok
}
