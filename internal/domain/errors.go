package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrUpstream     = errors.New("upstream failure")
)

// Specific failures of the OTP and identity flows. Each one wraps exactly one
// of the kinds above; the message is safe to show to a client.
var (
	ErrEmailRequired      = fmt.Errorf("email is required: %w", ErrBadRequest)
	ErrUsernameRequired   = fmt.Errorf("username is required: %w", ErrBadRequest)
	ErrOTPMissing         = fmt.Errorf("OTP expired or not sent: %w", ErrBadRequest)
	ErrOTPMismatch        = fmt.Errorf("invalid OTP: %w", ErrUnauthorized)
	ErrEmailNotVerified   = fmt.Errorf("email not verified with OTP: %w", ErrBadRequest)
	ErrPasswordMismatch   = fmt.Errorf("passwords do not match: %w", ErrBadRequest)
	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters with an uppercase letter, number, and special character: %w", ErrBadRequest)
	ErrEmailTaken         = fmt.Errorf("user with this email already exists: %w", ErrConflict)
	ErrUsernameTaken      = fmt.Errorf("username already taken: %w", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrBadRequest)
	ErrUserNotFound       = fmt.Errorf("user not found: %w", ErrNotFound)
)

// Upstream marks err as a collaborator failure (store, mailer, hasher, model).
// The result matches both ErrUpstream and err under errors.Is.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

var specific = []error{
	ErrEmailRequired, ErrUsernameRequired, ErrOTPMissing, ErrOTPMismatch, ErrEmailNotVerified,
	ErrPasswordMismatch, ErrWeakPassword, ErrEmailTaken, ErrUsernameTaken,
	ErrInvalidCredentials, ErrUserNotFound,
}

// Message returns the client-facing text of the specific failure wrapped by
// err, without its kind suffix. Anything else yields fallback.
func Message(err error, fallback string) string {
	for _, e := range specific {
		if errors.Is(err, e) {
			return strings.TrimSuffix(e.Error(), ": "+errors.Unwrap(e).Error())
		}
	}
	return fallback
}
