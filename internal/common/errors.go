package common

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrAccessDenied          = errors.New("access denied")
	ErrNotFound              = errors.New("not found")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrOperationFailed       = errors.New("operation failed")
)

// ValidationError reports the first input constraint that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OperationError wraps an unexpected persistence or provider failure. It
// matches ErrOperationFailed and keeps the cause for server-side logs.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s: operation could not be completed", e.Op)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrOperationFailed }

// SecureErrorMessage creates standardized error messages to prevent information leakage.
// Taxonomy errors pass through unchanged so callers can still tell them apart.
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &OperationError{Op: operation, Err: err}
}

// IsDomainError reports whether err belongs to the caller-visible taxonomy.
func IsDomainError(err error) bool {
	var ve *ValidationError
	var oe *OperationError
	switch {
	case errors.As(err, &ve), errors.As(err, &oe):
		return true
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidOrExpiredToken):
		return true
	}
	return false
}
