package domain

import "context"

//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks -source=repositories.go LegacyBackend

// LegacyBackend is the remote service being phased out.
// Implemented by the legacy HTTP client.
type LegacyBackend interface {
	// Authenticate logs in and persists the resulting session.
	// Returns an *AuthError of kind AuthLoginFailed on bad credentials.
	Authenticate(ctx context.Context, email, password string) (*LegacySession, error)

	// CurrentSession returns the stored session, or nil when signed out
	CurrentSession(ctx context.Context) (*LegacySession, error)

	// ListOwnedGroups returns the top-level record groups owned by the session user
	ListOwnedGroups(ctx context.Context, session *LegacySession) ([]GroupRef, error)

	// FetchGroup returns one top-level record with its nested children
	FetchGroup(ctx context.Context, session *LegacySession, ref GroupRef) (*RecordGroup, error)

	SendPasswordReset(ctx context.Context, email string) error

	// SignOut invalidates the remote session and clears the stored one
	SignOut(ctx context.Context) error
}
