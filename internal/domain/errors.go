package domain

import (
	"fmt"

	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// ErrStaleState is returned when a conditional update matched zero rows
// because the record changed underneath the caller.
var ErrStaleState = apperrors.Conflict("record was modified concurrently, reload and retry")

// InsufficientStockError reports a failed stock reservation with the
// quantity actually available at decision time.
type InsufficientStockError struct {
	VariantID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.VariantID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// Unwrap maps the error onto the conflict sentinel for HTTP status mapping.
func (e *InsufficientStockError) Unwrap() error {
	return apperrors.ErrConflict
}

// PromotionInvalidError reports why a promotion code could not be applied.
type PromotionInvalidError struct {
	Code   string
	Reason string
}

func (e *PromotionInvalidError) Error() string {
	return fmt.Sprintf("promotion %s: %s", e.Code, e.Reason)
}

// Unwrap maps the error onto the invalid-input sentinel.
func (e *PromotionInvalidError) Unwrap() error {
	return apperrors.ErrInvalidInput
}
