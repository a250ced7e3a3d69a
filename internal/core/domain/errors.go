package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an operation against a record that does not exist or
// is soft-deleted. Repositories return it instead of driver-specific errors.
var ErrNotFound = errors.New("record not found")

// ValidationError marks malformed or missing caller input. Always
// recoverable by fixing the request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError marks a uniqueness violation, e.g. registering a second
// active key for a consumer identifier that already has one.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnauthorizedError signals that a consumer has no valid public key on
// record. The message deliberately does not disclose whether the identifier
// is unknown, deactivated, or expired.
type UnauthorizedError struct {
	ConsumerIdentifier string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("no valid public key for consumer %q", e.ConsumerIdentifier)
}

// CryptoError wraps a failure inside a cryptographic primitive: bad key,
// corrupt ciphertext, generator failure. Never retryable, never swallowed;
// the HTTP layer maps it to an internal failure without echoing details.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("crypto: %s failed", e.Op)
	}
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NewCryptoError wraps err as a CryptoError for operation op.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}
