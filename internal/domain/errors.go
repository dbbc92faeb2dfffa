package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrIllegalTransition indicates a state machine rejected a transition
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrNoLegacySession indicates no authenticated legacy session exists
	ErrNoLegacySession = errors.New("no legacy session")

	// ErrDuplicateKey indicates an insert collided with an existing record
	ErrDuplicateKey = errors.New("record already exists")

	// ErrBackendUnreachable indicates the legacy backend could not be reached
	ErrBackendUnreachable = errors.New("legacy backend is unreachable")

	// ErrStoreClosed indicates the local store has been closed
	ErrStoreClosed = errors.New("store is closed")
)

// AuthErrorKind classifies authentication failures
type AuthErrorKind int

const (
	AuthLoginFailed AuthErrorKind = iota
	AuthReauthenticationFailed
	AuthUpdateFailed
	AuthDeletionFailed
	AuthPasswordResetFailed
	AuthSignOutFailed
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthLoginFailed:
		return "loginFailed"
	case AuthReauthenticationFailed:
		return "reauthenticationFailed"
	case AuthUpdateFailed:
		return "updateFailed"
	case AuthDeletionFailed:
		return "deletionFailed"
	case AuthPasswordResetFailed:
		return "passwordResetFailed"
	case AuthSignOutFailed:
		return "signOutFailed"
	default:
		return fmt.Sprintf("AuthErrorKind(%d)", int(k))
	}
}

// AuthError is an authentication failure carrying a message fit for the user.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

// NewAuthError wraps err as an AuthError of the given kind
func NewAuthError(kind AuthErrorKind, message string, err error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an AuthError of the given kind
func IsAuthError(err error, kind AuthErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}
