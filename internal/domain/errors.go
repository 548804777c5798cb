package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals malformed caller input (empty text, unknown currency code, bad date).
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration signals bad static settings (chunking parameters, schema).
	ErrConfiguration = errors.New("configuration error")
	// ErrSchemaMismatch signals an existing table whose schema conflicts with the requested one.
	ErrSchemaMismatch = fmt.Errorf("%w: schema mismatch", ErrConfiguration)
	// ErrRetryableService signals a transient failure of an external service.
	ErrRetryableService = errors.New("retryable service error")
	// ErrFatalService signals a non-retryable failure of an external service (auth, permission).
	ErrFatalService = errors.New("fatal service error")
	// ErrNotFound signals a missing table, file or tool.
	ErrNotFound = errors.New("not found")
	// ErrMissingField signals a template variable that was not supplied.
	ErrMissingField = errors.New("missing field")
)

// MissingFieldError wraps ErrMissingField with the name of the absent field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingField.Error(), e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return &MissingFieldError{Field: field}
}

// IsRetryable reports whether err is worth retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryableService)
}

// IsServiceError reports whether err came from an external service (retryable or fatal).
func IsServiceError(err error) bool {
	return errors.Is(err, ErrRetryableService) || errors.Is(err, ErrFatalService)
}
