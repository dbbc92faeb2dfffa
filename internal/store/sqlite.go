package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/mmcdole/stork/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements domain.Store on a SQLite database.
// Several stores may share one file; a store only sees another's writes
// after Refresh.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool
	kinds  *kindCache
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, kinds: newKindCache()}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) Refresh() {
	s.kinds.reset()
}

func (s *SQLiteStore) Insert(ctx context.Context, rec domain.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, updated, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (key, kind, legacy_id, parent_legacy_id, owner_id, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Key(), string(rec.Kind), rec.LegacyID, rec.ParentLegacyID, rec.OwnerID, data, updated)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s %s", domain.ErrDuplicateKey, rec.Kind, rec.LegacyID)
		}
		return fmt.Errorf("insert %s %s: %w", rec.Kind, rec.LegacyID, err)
	}
	s.kinds.invalidate(rec.Kind)
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec domain.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, updated, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (key, kind, legacy_id, parent_legacy_id, owner_id, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   parent_legacy_id = excluded.parent_legacy_id,
		   owner_id = excluded.owner_id,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		rec.Key(), string(rec.Kind), rec.LegacyID, rec.ParentLegacyID, rec.OwnerID, data, updated)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", rec.Kind, rec.LegacyID, err)
	}
	s.kinds.invalidate(rec.Kind)
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, kind domain.Kind) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if v, ok := s.kinds.getExists(kind); ok {
		return v, nil
	}

	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM records WHERE kind = ? LIMIT 1)`, string(kind)).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", kind, err)
	}
	s.kinds.setExists(kind, found)
	return found, nil
}

func (s *SQLiteStore) Count(ctx context.Context, kind domain.Kind) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if v, ok := s.kinds.getCount(kind); ok {
		return v, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE kind = ?`, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	s.kinds.setCount(kind, n)
	return n, nil
}

func (s *SQLiteStore) FetchAll(ctx context.Context, kind domain.Kind, match func(domain.Record) bool) ([]domain.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE kind = ? ORDER BY key`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, kind domain.Kind, legacyID string) (domain.Record, bool, error) {
	if err := s.checkOpen(); err != nil {
		return domain.Record{}, false, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE key = ?`, domain.RecordKey(kind, legacyID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("get %s %s: %w", kind, legacyID, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return domain.Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}
