package domain

import (
	"errors"
	"fmt"
)

// Error categories. Services wrap these so transports can map them to
// status codes with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidInterval   = errors.New("invalid interval")
	ErrScheduleViolation = errors.New("outside facility operating hours")
	ErrConflict          = errors.New("slot already reserved")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrStateGuard        = errors.New("transition not allowed")
	ErrAlreadyRated      = errors.New("order already rated")
	ErrPaymentGateway    = errors.New("payment gateway failure")
	ErrRateLimited       = errors.New("rate limited")
)

var (
	ErrFacilityClosed   = fmt.Errorf("facility closed that day: %w", ErrScheduleViolation)
	ErrOutsideOpenHours = fmt.Errorf("booking outside open hours: %w", ErrScheduleViolation)
	ErrSpansDays        = fmt.Errorf("booking spans a day boundary: %w", ErrScheduleViolation)
)

// StateGuardError describes a rejected transition.
type StateGuardError struct {
	State  OrderState
	Action string
	Reason string
}

func (e *StateGuardError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot %s order in state %s", e.Action, e.State)
	}
	return fmt.Sprintf("cannot %s order in state %s: %s", e.Action, e.State, e.Reason)
}

func (e *StateGuardError) Unwrap() error { return ErrStateGuard }

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PaymentGatewayError wraps a failed gateway call.
type PaymentGatewayError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *PaymentGatewayError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("payment gateway %s (%s): %v", e.Op, kind, e.Err)
}

func (e *PaymentGatewayError) Unwrap() []error { return []error{ErrPaymentGateway, e.Err} }

// IsRetryable reports whether err carries a retryable gateway failure.
func IsRetryable(err error) bool {
	var pge *PaymentGatewayError
	return errors.As(err, &pge) && pge.Retryable
}
