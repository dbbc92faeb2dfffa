// Package legacytest provides an in-memory legacy backend for tests.
package legacytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmcdole/stork/internal/domain"
)

var signingKey = []byte("legacytest")

type user struct {
	id       string
	password string
	groups   []domain.RecordGroup
}

// Server is an httptest server speaking the legacy backend protocol.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*user // by email
	tokens   map[string]string
	failures map[string]int // group legacy id -> remaining failed fetches
	resets   []string
	logouts  int
	fetches  int
	TokenTTL time.Duration
}

// NewServer starts a server that is closed with the test
func NewServer(t testing.TB) *Server {
	s := &Server{
		users:    make(map[string]*user),
		tokens:   make(map[string]string),
		failures: make(map[string]int),
		TokenTTL: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /password-reset", s.handlePasswordReset)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /users/{id}/groups", s.handleGroups)
	mux.HandleFunc("GET /groups/{kind}/{id}", s.handleGroup)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account owning groups
func (s *Server) AddUser(email, password, userID string, groups ...domain.RecordGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = &user{id: userID, password: password, groups: groups}
}

// FailFetches makes the next n fetches of group legacyID return 503
func (s *Server) FailFetches(legacyID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[legacyID] = n
}

// Resets returns the emails that requested a password reset
func (s *Server) Resets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resets...)
}

func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

// Fetches counts successful group fetches
func (s *Server) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Delivery builds a delivery group with babies
func Delivery(id string, babies ...string) domain.RecordGroup {
	g := domain.RecordGroup{
		Ref:  domain.GroupRef{Kind: domain.KindDelivery, LegacyID: id},
		Root: domain.Record{Kind: domain.KindDelivery, LegacyID: id, Fields: map[string]any{"hospital": "St. Mary"}},
	}
	for _, b := range babies {
		g.Children = append(g.Children, domain.Record{Kind: domain.KindBaby, LegacyID: b})
	}
	return g
}

// Profile builds a profile group
func Profile(id string) domain.RecordGroup {
	return domain.RecordGroup{
		Ref:  domain.GroupRef{Kind: domain.KindProfile, LegacyID: id},
		Root: domain.Record{Kind: domain.KindProfile, LegacyID: id},
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	if !ok || u.password != req.Password {
		s.mu.Unlock()
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.id,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        req.Email + time.Now().String(),
	}).SignedString(signingKey)
	if err != nil {
		s.mu.Unlock()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.tokens[token] = u.id
	s.mu.Unlock()

	writeJSON(w, map[string]string{
		"user_id":       u.id,
		"email":         req.Email,
		"session_token": token,
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.Contains(req.Email, "@") {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.resets = append(s.resets, req.Email)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := r.Header.Get("X-Session-Token")
	if _, ok := s.tokens[token]; !ok {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}
	delete(s.tokens, token)
	s.logouts++
	w.WriteHeader(http.StatusNoContent)
}

// userFor returns the user owning the request's session token
func (s *Server) userFor(r *http.Request) *user {
	id, ok := s.tokens[r.Header.Get("X-Session-Token")]
	if !ok {
		return nil
	}
	for _, u := range s.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userFor(r)
	if u == nil || u.id != r.PathValue("id") {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	refs := make([]domain.GroupRef, 0, len(u.groups))
	for _, g := range u.groups {
		refs = append(refs, g.Ref)
	}
	writeJSON(w, refs)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userFor(r)
	if u == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	kind, id := domain.Kind(r.PathValue("kind")), r.PathValue("id")
	if n := s.failures[id]; n > 0 {
		s.failures[id] = n - 1
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	for _, g := range u.groups {
		if g.Ref.Kind == kind && g.Ref.LegacyID == id {
			s.fetches++
			writeJSON(w, g)
			return
		}
	}
	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
