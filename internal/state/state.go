// Package state persists the process-wide flags that outlive a single
// screen: the has-synced flag, the legacy session and the migrated-user
// ledger.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mmcdole/stork/internal/domain"
)

// fileState is the on-disk layout
type fileState struct {
	HasSynced     bool                  `yaml:"has_synced"`
	LegacySession *domain.LegacySession `yaml:"legacy_session,omitempty"`
	MigratedUsers []string              `yaml:"migrated_users,omitempty"`
}

// Store implements domain.SessionStore on a YAML file.
// Every mutation is written through before it returns.
type Store struct {
	path string

	mu    sync.RWMutex
	state fileState
}

// Open loads the state file at path. A missing file yields empty state.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return s, nil
}

func (s *Store) HasSynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.HasSynced
}

func (s *Store) SetHasSynced(v bool) error {
	return s.update(func(st *fileState) { st.HasSynced = v })
}

// LegacySession returns a copy of the stored session, or nil
func (s *Store) LegacySession() *domain.LegacySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.LegacySession == nil {
		return nil
	}
	sess := *s.state.LegacySession
	return &sess
}

func (s *Store) SetLegacySession(sess *domain.LegacySession) error {
	if sess == nil {
		return s.ClearLegacySession()
	}
	cp := *sess
	return s.update(func(st *fileState) { st.LegacySession = &cp })
}

func (s *Store) ClearLegacySession() error {
	return s.update(func(st *fileState) { st.LegacySession = nil })
}

// IsMigrated reports whether userID finished a migration on this device
func (s *Store) IsMigrated(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.state.MigratedUsers, userID)
}

func (s *Store) MarkMigrated(userID string) error {
	return s.update(func(st *fileState) {
		if !slices.Contains(st.MigratedUsers, userID) {
			st.MigratedUsers = append(st.MigratedUsers, userID)
		}
	})
}

// Reset clears the has-synced flag. The migrated-user ledger is kept.
func (s *Store) Reset() error {
	return s.update(func(st *fileState) { st.HasSynced = false })
}

// update applies fn and writes the result, restoring the previous state
// if the write fails.
func (s *Store) update(fn func(*fileState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	prev.MigratedUsers = slices.Clone(s.state.MigratedUsers)

	fn(&s.state)
	if err := s.write(); err != nil {
		s.state = prev
		return err
	}
	return nil
}

func (s *Store) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
