package stock

import (
	"context"

	"facturo/internal/core/id"
	"facturo/internal/core/types"
)

// Repository defines storage operations for product stock.
// Implementations run on the transaction carried by ctx.
type Repository interface {
	// Decrement subtracts qty only if the product holds at least qty.
	// ok is false when the guard failed or the product does not exist.
	Decrement(ctx context.Context, companyID, productID id.ID, qty types.Quantity) (level Level, ok bool, err error)

	// Increment adds qty unconditionally.
	Increment(ctx context.Context, companyID, productID id.ID, qty types.Quantity) (Level, error)

	// GetLevel returns the current level (NOT_FOUND for unknown products).
	GetLevel(ctx context.Context, companyID, productID id.ID) (Level, error)

	// CreateMovements appends movement records.
	CreateMovements(ctx context.Context, movements []Movement) error

	// GetMovementsByDocument lists movements recorded for a document, oldest first.
	GetMovementsByDocument(ctx context.Context, companyID, documentID id.ID) ([]Movement, error)
}
