// Package errors holds the sentinel errors shared by the store adapters,
// the Q&A services and the HTTP layer.
package errors

import "errors"

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrUnauthorized        = errors.New("not authorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// Retryable reports whether err is a transient store failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
