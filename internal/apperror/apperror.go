package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application's error taxonomy. Services and
// repositories wrap these in an AppError; handlers map them to HTTP codes.
//
// ErrUnauthorized is deliberately separate from ErrForbidden: a missing or
// invalid admin session must surface as "authentication required" (prompt a
// re-login), not as a generic data-layer failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("authentication required")
	ErrLimitReached = errors.New("limit reached")
)

type AppError struct {
	Err     error  // sentinel cause, for errors.Is checks
	Message string // human-readable error message
	Field   string // optional: field causing the error
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

// Conflict returns an AppError for duplicate-resource failures.
// The registration flow uses this for the "already registered" outcome,
// whether detected by the pre-check or by the UNIQUE constraint.
func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s: %s", resource, message),
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

// Unauthorized returns an AppError indicating no valid session is present.
// HTTP handlers map this to 401 so clients can prompt a re-login instead of
// showing a data error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// LimitReached returns an AppError for a community password whose usage
// ceiling has been hit.
func LimitReached(resource, id string) *AppError {
	return &AppError{
		Err:     ErrLimitReached,
		Message: fmt.Sprintf("%s %s has reached its maximum usage limit", resource, id),
	}
}
