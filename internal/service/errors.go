package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already registered")

	// ErrInvalidCredentials is the only login failure shown to clients.
	ErrInvalidCredentials = errors.New("invalid username/email and/or password")
	ErrUnknownAccount     = fmt.Errorf("%w: unknown account", ErrInvalidCredentials)
	ErrBadPassword        = fmt.Errorf("%w: wrong password", ErrInvalidCredentials)

	ErrNotFoundOrUnauthorized = errors.New("task not found or unauthorized")
	ErrUserNotFound           = errors.New("user not found")
	ErrPersistence            = errors.New("storage failure")
	ErrLinkCodeInvalid        = errors.New("link code is invalid or expired")
)

// ValidationError carries every rule a form broke, in the order checked.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, " ")
}

func newValidationError(reasons []string) error {
	return &ValidationError{Reasons: reasons}
}

// persistence tags a storage error so callers can match ErrPersistence
// without losing the cause.
func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrPersistence, err))
}
