package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the failure categories surfaced by an analysis run
type ErrorType string

const (
	ErrorTypeDecodeFailure        ErrorType = "decode_failure"
	ErrorTypeInvalidParameter     ErrorType = "invalid_parameter"
	ErrorTypeLengthMismatch       ErrorType = "length_mismatch"
	ErrorTypePrimitiveUnavailable ErrorType = "primitive_unavailable"
	ErrorTypeInternal             ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Path       string    `json:"path,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithPath returns a copy of the error bound to a file path
func (e *AppError) WithPath(path string) *AppError {
	cp := *e
	cp.Path = path
	return &cp
}

// NewDecodeError reports an unreadable or corrupt image. Recoverable per file.
func NewDecodeError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDecodeFailure,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewInvalidParameterError reports a configuration problem found before any work starts
func NewInvalidParameterError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidParameter,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewLengthMismatchError reports a comparison between hashes of unequal bit length
func NewLengthMismatchError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLengthMismatch,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewPrimitiveUnavailableError reports a missing or broken hash provider
func NewPrimitiveUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypePrimitiveUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error chain contains an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
