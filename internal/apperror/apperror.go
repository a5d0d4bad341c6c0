// Package apperror defines the domain errors shared by every layer.
//
// Layers below HTTP never return status codes. They return an *AppError that
// wraps one of the sentinels below, and the handler package maps the sentinel
// to a status with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid role")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Value   string // Optional: offending value supplied by the caller
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

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidRole reports a role filter value outside the known role taxonomy.
//
// The message stays fixed per field ("Invalid Enrollment Type") so clients can
// match on it; the offending value travels separately in Value and is appended
// to the message for logs.
func InvalidRole(field, value, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidRole,
		Message: fmt.Sprintf("%s: %q", message, value),
		Field:   field,
		Value:   value,
	}
}
