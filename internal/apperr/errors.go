// Package apperr provides the coded error type shared by the fairness core
// and its HTTP surface.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeEntropy         Code = "ENTROPY"
	CodeNotFound        Code = "NOT_FOUND"
	CodeExpired         Code = "EXPIRED"
	CodeAlreadyRevealed Code = "ALREADY_REVEALED"
	CodeNotRevealed     Code = "NOT_REVEALED"
	CodeNonceReused     Code = "NONCE_REUSED"
	CodeInvalidConfig   Code = "INVALID_CONFIG"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInternal        Code = "INTERNAL"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrEntropy         = New(CodeEntropy, "secure randomness unavailable")
	ErrNotFound        = New(CodeNotFound, "not found")
	ErrExpired         = New(CodeExpired, "expired")
	ErrAlreadyRevealed = New(CodeAlreadyRevealed, "already revealed")
	ErrNotRevealed     = New(CodeNotRevealed, "not revealed")
	ErrNonceReused     = New(CodeNonceReused, "nonce reused")
	ErrInvalidConfig   = New(CodeInvalidConfig, "invalid config")
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context for callers
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HTTPStatus maps the code to the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidConfig:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExpired:
		return http.StatusGone
	case CodeAlreadyRevealed, CodeNotRevealed, CodeNonceReused:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
