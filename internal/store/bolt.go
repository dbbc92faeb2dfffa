package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/stork/internal/domain"
)

// bucketCounts maps kind -> big-endian uint64 record count
var bucketCounts = []byte("_counts")

// BoltStore implements domain.Store using BoltDB.
// Records live in one bucket per kind, keyed by Record.Key().
type BoltStore struct {
	db *bolt.DB

	mu     sync.RWMutex // Protects memory cache and closed
	closed bool

	// In-memory cache of record bytes (promoted on read, dropped by Refresh)
	cache map[string][]byte
	kinds *kindCache
}

// NewBoltStore opens (or creates) the BoltDB file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCounts); err != nil {
			return err
		}
		for _, kind := range domain.Kinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:    db,
		cache: make(map[string][]byte),
		kinds: newKindCache(),
	}, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
	return s.db.Close()
}

// Refresh drops every cached read so the next query goes to disk
func (s *BoltStore) Refresh() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
	s.kinds.reset()
}

func (s *BoltStore) Insert(ctx context.Context, rec domain.Record) error {
	return s.put(ctx, rec, false)
}

func (s *BoltStore) Upsert(ctx context.Context, rec domain.Record) error {
	return s.put(ctx, rec, true)
}

func (s *BoltStore) put(ctx context.Context, rec domain.Record, replace bool) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", rec.Kind, rec.LegacyID, err)
	}
	key := rec.Key()

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(rec.Kind))
		if err != nil {
			return err
		}
		existing := b.Get([]byte(key)) != nil
		if existing && !replace {
			return fmt.Errorf("%w: %s %s", domain.ErrDuplicateKey, rec.Kind, rec.LegacyID)
		}
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}
		if !existing {
			return addCount(tx, rec.Kind, 1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Update memory cache
	s.mu.Lock()
	s.cache[cacheKey(rec.Kind, key)] = data
	s.mu.Unlock()
	s.kinds.invalidate(rec.Kind)
	return nil
}

// Exists checks the first cursor position only
func (s *BoltStore) Exists(ctx context.Context, kind domain.Kind) (bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	if v, ok := s.kinds.getExists(kind); ok {
		return v, nil
	}

	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		found = k != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", kind, err)
	}

	s.kinds.setExists(kind, found)
	return found, nil
}

// Count reads the per-kind counter maintained alongside every write
func (s *BoltStore) Count(ctx context.Context, kind domain.Kind) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	if v, ok := s.kinds.getCount(kind); ok {
		return v, nil
	}

	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int(readCount(tx, kind))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}

	s.kinds.setCount(kind, n)
	return n, nil
}

func (s *BoltStore) FetchAll(ctx context.Context, kind domain.Kind, match func(domain.Record) bool) ([]domain.Record, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var out []domain.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec domain.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			if match == nil || match(rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	return out, nil
}

// Get returns one record by kind and legacy id
func (s *BoltStore) Get(ctx context.Context, kind domain.Kind, legacyID string) (domain.Record, bool, error) {
	var rec domain.Record
	if err := s.checkOpen(ctx); err != nil {
		return rec, false, err
	}

	key := domain.RecordKey(kind, legacyID)
	ck := cacheKey(kind, key)

	// Check memory cache first
	s.mu.RLock()
	data, ok := s.cache[ck]
	s.mu.RUnlock()

	if !ok {
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(kind))
			if b == nil {
				return nil
			}
			if v := b.Get([]byte(key)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if err != nil {
			return rec, false, fmt.Errorf("get %s %s: %w", kind, legacyID, err)
		}
		if data == nil {
			return rec, false, nil
		}

		// Promote to memory cache
		s.mu.Lock()
		s.cache[ck] = data
		s.mu.Unlock()
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("decode %s %s: %w", kind, legacyID, err)
	}
	return rec, true, nil
}

func (s *BoltStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

func cacheKey(kind domain.Kind, key string) string {
	return string(kind) + ":" + key
}

func readCount(tx *bolt.Tx, kind domain.Kind) uint64 {
	b := tx.Bucket(bucketCounts)
	if b == nil {
		return 0
	}
	v := b.Get([]byte(kind))
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func addCount(tx *bolt.Tx, kind domain.Kind, delta uint64) error {
	b, err := tx.CreateBucketIfNotExists(bucketCounts)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, readCount(tx, kind)+delta)
	return b.Put([]byte(kind), buf)
}
