package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of a persisted record
type Kind string

const (
	KindProfile  Kind = "profile"
	KindDelivery Kind = "delivery"
	KindBaby     Kind = "baby"
)

// Kinds lists every record kind the local store knows about
var Kinds = []Kind{KindProfile, KindDelivery, KindBaby}

// recordNamespace scopes the UUIDv5 keys derived from legacy ids
var recordNamespace = uuid.MustParse("5d1c1c52-7a0e-4f7a-9d43-2f1f3f4b8a61")

// Record is a single migrated or replicated entity.
type Record struct {
	Kind           Kind           `json:"kind"`
	LegacyID       string         `json:"legacy_id"`                  // Stable id on the legacy backend
	ParentLegacyID string         `json:"parent_legacy_id,omitempty"` // Owning record for nested children
	OwnerID        string         `json:"owner_id"`                   // Legacy user id
	Fields         map[string]any `json:"fields,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Key returns the local store key for the record. The key depends only on
// kind and legacy id, so writing the same legacy record twice hits the same key.
func (r Record) Key() string {
	return RecordKey(r.Kind, r.LegacyID)
}

// RecordKey derives the local key for a legacy record.
func RecordKey(kind Kind, legacyID string) string {
	return uuid.NewSHA1(recordNamespace, []byte(string(kind)+":"+legacyID)).String()
}

// GroupRef identifies a top-level legacy entity before it is fetched
type GroupRef struct {
	Kind     Kind   `json:"kind"`
	LegacyID string `json:"id"`
}

// RecordGroup is one top-level legacy entity together with its nested children.
// Migration progress advances once per group.
type RecordGroup struct {
	Ref      GroupRef `json:"ref"`
	Root     Record   `json:"root"`
	Children []Record `json:"children,omitempty"`
}

// Records returns the root followed by its children, in write order
func (g RecordGroup) Records() []Record {
	out := make([]Record, 0, 1+len(g.Children))
	out = append(out, g.Root)
	out = append(out, g.Children...)
	return out
}

// ConvergenceResult is the outcome of one probe of the local store.
// It is recomputed on every refresh and never carried across refreshes.
type ConvergenceResult struct {
	Found       bool
	RecordCount int
}

// LegacySession is an authenticated session against the legacy backend.
type LegacySession struct {
	UserID    string    `yaml:"user_id" json:"user_id"`
	Email     string    `yaml:"email" json:"email"`
	Token     string    `yaml:"token" json:"token"`
	ExpiresAt time.Time `yaml:"expires_at" json:"expires_at"`
}

// Authenticated reports whether the session still grants access
func (s *LegacySession) Authenticated() bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
}
