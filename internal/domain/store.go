package domain

import "context"

// Store is the local persisted record store.
// Reads may be served from an in-memory cache; Refresh drops it so the
// next read reflects writes made by a background replication engine.
type Store interface {
	RecordWriter

	// Insert fails with ErrDuplicateKey when the record's key already exists
	Insert(ctx context.Context, rec Record) error

	// Exists reports whether at least one record of kind is present.
	// It must not scan the full record set.
	Exists(ctx context.Context, kind Kind) (bool, error)

	Count(ctx context.Context, kind Kind) (int, error)

	// Get returns the record of kind with the given legacy id
	Get(ctx context.Context, kind Kind, legacyID string) (Record, bool, error)

	// FetchAll returns every record of kind accepted by match (nil matches all)
	FetchAll(ctx context.Context, kind Kind, match func(Record) bool) ([]Record, error)

	Refresh()
	Close() error
}

// RecordWriter is the write side used by migration.
type RecordWriter interface {
	// Upsert writes rec under rec.Key(), replacing any previous version
	Upsert(ctx context.Context, rec Record) error
}
