package domain

import "context"

// ChangeNotifier is the cloud replication signal source.
// Each Subscribe call owns an independent subscription; the returned
// cancel func releases it and is safe to call more than once.
type ChangeNotifier interface {
	// Available reports whether a cloud replication channel exists at all
	Available() bool

	// Subscribe returns a channel that receives a value whenever replicated
	// data lands locally.
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
}

// SessionStore holds the process-wide flags that outlive a screen.
type SessionStore interface {
	HasSynced() bool
	SetHasSynced(bool) error

	LegacySession() *LegacySession
	SetLegacySession(*LegacySession) error
	ClearLegacySession() error

	IsMigrated(userID string) bool
	MarkMigrated(userID string) error
}
