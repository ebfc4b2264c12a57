package service

import (
	"errors"
	"fmt"
)

// Error kinds recoverable at the request boundary. Handlers map them to
// stable HTTP statuses; nothing in this package panics on them.
var (
	// ErrForbidden covers role, ownership and membership violations.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound covers absent resources and resources deliberately hidden
	// from principals with no relationship to them.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPayload covers malformed input, including undecodable file
	// payloads.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrConflict covers duplicate memberships and exhausted join-code
	// allocation retries.
	ErrConflict = errors.New("conflict")
	// ErrStorageFailure covers I/O errors from the relational store or the
	// blob store.
	ErrStorageFailure = errors.New("storage failure")
	// ErrInvalidCredentials is returned on failed login attempts.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Denial reasons carried by authorization failures.
const (
	DenyReasonRole      = "forbidden-role"
	DenyReasonNotOwner  = "not-owner"
	DenyReasonNotMember = "not-member"
)

// AuthzError is a Forbidden error with a machine-readable denial reason.
type AuthzError struct {
	Reason string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// Unwrap makes AuthzError match errors.Is(err, ErrForbidden).
func (e *AuthzError) Unwrap() error {
	return ErrForbidden
}

func denied(reason string) error {
	return &AuthzError{Reason: reason}
}

// DenialReason extracts the reason from an authorization failure, or returns
// the empty string for any other error.
func DenialReason(err error) string {
	var authzErr *AuthzError
	if errors.As(err, &authzErr) {
		return authzErr.Reason
	}

	return ""
}
