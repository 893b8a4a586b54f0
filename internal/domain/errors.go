// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrHubClosed      = errors.New("message hub is closed")
	ErrInvalidCommand = errors.New("invalid command")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Error codes for client responses.
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidCommand   = "INVALID_COMMAND"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError represents a failure in the event log backend.
type StorageError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{
		Op:  op,
		Err: err,
	}
}

// ErrorCode maps an error to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return ErrCodeValidationFailed
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidPayload):
		return ErrCodeInvalidPayload
	case errors.Is(err, ErrHubClosed):
		return ErrCodeUnavailable
	default:
		return ErrCodeInternalError
	}
}
