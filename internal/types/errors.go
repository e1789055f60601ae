package types

import "errors"

// Error taxonomy shared by every layer. Services wrap these with %w and
// handlers translate them into status codes with api.StatusForError.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limited")
	ErrExpired             = errors.New("expired")
	ErrUpstream            = errors.New("upstream service failure")
	ErrPersistenceDisabled = errors.New("persistence disabled")
	ErrFrozen              = errors.New("writes are frozen")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// FieldErrors maps a JSON field name to a human readable message.
type FieldErrors map[string]string

// ValidationError carries per-field messages and unwraps to ErrValidation.
type ValidationError struct {
	Message string
	Fields  FieldErrors
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(message string, fields FieldErrors) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// AttemptsError is returned for a wrong verification code.
type AttemptsError struct {
	AttemptsLeft int
}

func (e *AttemptsError) Error() string { return "invalid verification code" }

func (e *AttemptsError) Unwrap() error { return ErrValidation }
