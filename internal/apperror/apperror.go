// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values; the HTTP layer maps the wrapped sentinel
// to a status code with errors.Is. Nothing in this taxonomy is fatal to the
// process: every kind is recoverable at the request boundary.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrAuth       = errors.New("authentication failed")
	ErrStore      = errors.New("store unavailable")

	// ErrIllegalTransition is a validation error: errors.Is matches both.
	ErrIllegalTransition = fmt.Errorf("%w: illegal transition", ErrValidation)
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// IllegalTransition reports a status change the task lifecycle does not allow.
func IllegalTransition(from, action string) *AppError {
	return &AppError{
		Err:     ErrIllegalTransition,
		Message: fmt.Sprintf("cannot %s a task in status %q", action, from),
		Field:   "status",
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthFailed reports bad credentials or an identity provider failure.
// The message is shown to the user, so it never says which part was wrong.
func AuthFailed(message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// StoreFailed wraps a remote read/write failure. The cause stays in the
// chain for logging but the message is generic and safe to show.
func StoreFailed(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrStore, op, cause),
		Message: "the data store is unavailable, please retry",
	}
}

// NotProvisioned reports a signed-in subject whose account an admin has not
// finished setting up. It matches ErrNotFound.
func NotProvisioned() *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: "account not set up, contact admin",
	}
}
