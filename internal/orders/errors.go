package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers cart lines, products and orders that are missing or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock means the requested quantity exceeds what is available.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition is returned for unknown statuses and non-forward moves.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyReviewed means no unreviewed line for the product exists on the order.
	ErrAlreadyReviewed = errors.New("already reviewed")
	// ErrForbidden is returned when cancellation is not allowed for the order.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput signals malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// StockError carries the numbers behind an insufficient stock failure.
type StockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
