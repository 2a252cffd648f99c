package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidInput = errors.New("invalid input")

	ErrDuplicateIdentity = errors.New("user with this email already exists")

	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidToken           = errors.New("invalid token")
	// ErrInvalidCredentials covers both an unknown email and a wrong password at login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrIncorrectPassword  = errors.New("incorrect current password")

	ErrAuthorizationDenied = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")

	// ErrPasswordTooLong is bcrypt's 72-byte input limit.
	ErrPasswordTooLong = fmt.Errorf("%w: password exceeds 72 bytes", ErrInvalidInput)

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("version conflict")
)

// Validationf returns an error wrapping ErrValidation with a client-safe detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
