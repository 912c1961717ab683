package services

import (
	"errors"
	"fmt"
)

var (
	ErrDispatchNotFound = errors.New("dispatch not found")
	ErrItemNotFound     = errors.New("inventory item not found")

	// ErrLineItemsImmutable is returned when an update tries to touch
	// line items or quantities. That mutation would need its own stock
	// reconciliation and is not supported.
	ErrLineItemsImmutable = errors.New("dispatch items cannot be modified after creation")
)

// ValidationError reports malformed or missing request input. Never
// retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError carries what was available against what the
// dispatch line asked for.
type InsufficientStockError struct {
	ItemCode  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Required: %d",
		e.ItemCode, e.Available, e.Requested)
}

// PersistenceError wraps a store failure. The operation is all-or-nothing
// so the caller may safely retry the whole request.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
