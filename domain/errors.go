package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalid            ErrorCode = "INVALID"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeInsufficientBudget ErrorCode = "INSUFFICIENT_BUDGET"
	ErrCodeInternal           ErrorCode = "INTERNAL"
)

// Error represents a domain-level error. Details carries structured
// context (e.g. the remaining budget) for callers that can act on it.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrTaskNotFound    = NewError(ErrCodeNotFound, "task not found")
	ErrActorNotFound   = NewError(ErrCodeNotFound, "actor not found")
	ErrBudgetNotFound  = NewError(ErrCodeNotFound, "budget account not found")
	ErrSessionNotFound = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload  = NewError(ErrCodeInvalid, "invalid payload")

	// ErrVersionConflict signals an optimistic-concurrency clash on a
	// task write. Recoverable: re-read and retry.
	ErrVersionConflict = NewError(ErrCodeConflict, "task was modified concurrently")
)

// NewInvalidTransition reports an intent that is not legal from the
// task's current status.
func NewInvalidTransition(from Status, intent string) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("intent %q is not allowed from status %q", intent, from),
		Details: map[string]any{"status": string(from), "intent": intent},
	}
}

// NewForbidden reports a permission-guard denial with its reason.
func NewForbidden(reason string) *Error {
	return &Error{Code: ErrCodeForbidden, Message: reason}
}

// NewValidationError reports a missing or malformed field for an intent.
func NewValidationError(field, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalid,
		Message: fmt.Sprintf("invalid field %q: %s", field, reason),
		Details: map[string]any{"field": field, "reason": reason},
	}
}

// NewInsufficientBudget reports a failed reservation, carrying the
// remaining amount so the caller can lower the adjustment and retry.
func NewInsufficientBudget(remaining, cost int) *Error {
	return &Error{
		Code:    ErrCodeInsufficientBudget,
		Message: fmt.Sprintf("insufficient budget: %d remaining, %d requested", remaining, cost),
		Details: map[string]any{"remaining": remaining, "requested": cost},
	}
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
