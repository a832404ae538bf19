package service

import (
	"errors"
	"fmt"
)

// Domain errors. These are deterministic outcomes of business rules and
// propagate to the caller for direct user-facing messaging; they are never
// logged and swallowed.
var (
	// ErrRequestNotFound means the request id does not exist, either because
	// it never did or because a concurrent cancel/reap removed it.
	ErrRequestNotFound = errors.New("request not found")

	// ErrProductNotFound means the referenced product was deleted after the
	// request was created. The request stays pending for manual handling.
	ErrProductNotFound = errors.New("product not found")

	// ErrNotCancelable means a cancel or reap targeted a request that was
	// already resolved. Benign; the caller should refresh its view.
	ErrNotCancelable = errors.New("request is no longer pending and cannot be cancelled")

	// ErrRequestNotPending means a decision targeted an already-resolved
	// request. Terminal requests are immutable.
	ErrRequestNotPending = errors.New("request has already been resolved")

	// ErrInvalidDecision means the decision was neither approved nor rejected.
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
)

// InsufficientStockError is returned when an approval asks for more units
// than the product currently has. Carries both numbers so the UI can show
// the shortfall. The transaction it aborts leaves no partial effect.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d requested", e.Available, e.Requested)
}
