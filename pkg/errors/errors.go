package errors

import (
	"fmt"

	"github.com/jafarshop/retailapi/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrConflict is returned when a request conflicts with current state
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrInvalidStateTransition is returned when an invalid return status transition is attempted
type ErrInvalidStateTransition struct {
	From domain.ReturnRequestStatus
	To   domain.ReturnRequestStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid return status transition from %s to %s", e.From, e.To)
}

// ErrPolicyWindow is returned when a return request falls outside the return window
type ErrPolicyWindow struct {
	WindowDays int
}

func (e *ErrPolicyWindow) Error() string {
	return fmt.Sprintf("return window has expired for this sale (%d day policy)", e.WindowDays)
}

// ErrStockConflict is returned when product stock changed under a concurrent checkout
type ErrStockConflict struct {
	ProductName string
	Available   int
}

func (e *ErrStockConflict) Error() string {
	return fmt.Sprintf("stock for %q changed: only %d left", e.ProductName, e.Available)
}

// ErrThrottled is returned when the request rate limit is exceeded
type ErrThrottled struct {
	Message string
}

func (e *ErrThrottled) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "too many requests"
}

// ErrUnavailable is returned when the circuit breaker short-circuits a call
type ErrUnavailable struct {
	Service string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s temporarily unavailable", e.Service)
}
