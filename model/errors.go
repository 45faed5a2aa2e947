package model

import "fmt"

// ValidationError is returned when a PaymentRequest is missing a required
// field or carries a non-positive amount. No state is mutated when it occurs.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payment request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError signals that an idempotency key already maps to a different
// payment id. Under per-key locking it must never surface.
type ConflictError struct {
	Key         string
	ExistingID  string
	AttemptedID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency key %s is already reserved for %s, cannot reserve for %s", e.Key, e.ExistingID, e.AttemptedID)
}

// InvalidTransitionError is returned when a status change is not in the
// allowed transition table.
type InvalidTransitionError struct {
	PaymentID string
	From      PaymentStatus
	To        PaymentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payment %s cannot move from %s to %s", e.PaymentID, e.From, e.To)
}
