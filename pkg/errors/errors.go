package errors

import (
	"fmt"
)

// ErrorType defines different categories of errors the engine can surface.
// The taxonomy is closed: every failure path must map to one of these.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeTimeout    ErrorType = "TIMEOUT"
	ErrorTypeBackend    ErrorType = "BACKEND"
	ErrorTypeCancelled  ErrorType = "CANCELLED"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error. Never retried by the core.
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFound creates a not-found error. A tenant mismatch must also use
// this constructor rather than a permission error, to avoid a
// tenant-existence oracle.
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewConflict creates an optimistic-concurrency or unique-key error.
// Retriable by the caller with a fresh read.
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewTimeout creates a deadline-exceeded error for an outbound call.
func NewTimeout(message string, err error) error {
	return &AppError{Type: ErrorTypeTimeout, Message: message, Err: err}
}

// NewBackend creates an unexpected downstream failure, carrying its cause.
func NewBackend(message string, err error) error {
	return &AppError{Type: ErrorTypeBackend, Message: message, Err: err}
}

// NewCancelled creates the normal-termination error for a caller-requested
// abort. Never surfaced as a failure to the caller that requested it.
func NewCancelled(message string) error {
	return &AppError{Type: ErrorTypeCancelled, Message: message}
}

// NewInternal creates a catch-all internal error.
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap wraps an error with additional context, preserving its type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal if err is not
// an *AppError.
func TypeOf(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Type checking functions

func IsValidation(err error) bool { return is(err, ErrorTypeValidation) }
func IsNotFound(err error) bool   { return is(err, ErrorTypeNotFound) }
func IsConflict(err error) bool   { return is(err, ErrorTypeConflict) }
func IsTimeout(err error) bool    { return is(err, ErrorTypeTimeout) }
func IsBackend(err error) bool    { return is(err, ErrorTypeBackend) }
func IsCancelled(err error) bool  { return is(err, ErrorTypeCancelled) }
func IsInternal(err error) bool   { return is(err, ErrorTypeInternal) }

func is(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}
