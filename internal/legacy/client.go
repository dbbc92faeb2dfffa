// Package legacy talks to the backend being phased out. It is only used
// to authenticate and to copy a user's records into the local store.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Stork/1.0"
	sessionHeader  = "X-Session-Token"
)

// errUnauthorized marks a 401/403 from the backend
var errUnauthorized = errors.New("unauthorized")

// Client implements domain.LegacyBackend over HTTP/JSON
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   domain.SessionStore
	logger     *slog.Logger
}

// NewClient creates a legacy backend client. Sessions are persisted in sessions.
func NewClient(baseURL string, timeout time.Duration, sessions domain.SessionStore, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		sessions:   sessions,
		logger:     log.OrDefault(logger),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	SessionToken string `json:"session_token"`
}

// Authenticate logs in with email and password and stores the session
func (c *Client) Authenticate(ctx context.Context, email, password string) (*domain.LegacySession, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", "", loginRequest{Email: email, Password: password}, &resp)
	if errors.Is(err, errUnauthorized) {
		return nil, domain.NewAuthError(domain.AuthLoginFailed, "Incorrect email or password.", err)
	}
	if errors.Is(err, domain.ErrBackendUnreachable) {
		return nil, domain.NewAuthError(domain.AuthLoginFailed, "Couldn't reach your old account. Check your connection and try again.", err)
	}
	if err != nil {
		return nil, domain.NewAuthError(domain.AuthLoginFailed, "Sign in failed. Please try again.", err)
	}
	if resp.SessionToken == "" {
		return nil, domain.NewAuthError(domain.AuthLoginFailed, "Sign in failed. Please try again.", errors.New("empty session token"))
	}

	session := &domain.LegacySession{
		UserID:    resp.UserID,
		Email:     resp.Email,
		Token:     resp.SessionToken,
		ExpiresAt: tokenExpiry(resp.SessionToken),
	}
	if session.Email == "" {
		session.Email = email
	}

	if err := c.sessions.SetLegacySession(session); err != nil {
		return nil, fmt.Errorf("store legacy session: %w", err)
	}

	c.logger.Info("legacy login succeeded", "user", session.UserID)
	return session, nil
}

// CurrentSession returns the stored session if it is still usable
func (c *Client) CurrentSession(_ context.Context) (*domain.LegacySession, error) {
	session := c.sessions.LegacySession()
	if !session.Authenticated() {
		return nil, nil
	}
	return session, nil
}

// ListOwnedGroups returns the top-level groups owned by the session user
func (c *Client) ListOwnedGroups(ctx context.Context, session *domain.LegacySession) ([]domain.GroupRef, error) {
	if !session.Authenticated() {
		return nil, domain.ErrNoLegacySession
	}

	var refs []domain.GroupRef
	path := "/users/" + url.PathEscape(session.UserID) + "/groups"
	if err := c.do(ctx, http.MethodGet, path, session.Token, nil, &refs); err != nil {
		return nil, c.sessionError(err)
	}
	return refs, nil
}

// FetchGroup returns one group with its children. Records are stamped with
// the session user as owner when the backend leaves it empty.
func (c *Client) FetchGroup(ctx context.Context, session *domain.LegacySession, ref domain.GroupRef) (*domain.RecordGroup, error) {
	if !session.Authenticated() {
		return nil, domain.ErrNoLegacySession
	}

	var group domain.RecordGroup
	path := "/groups/" + url.PathEscape(string(ref.Kind)) + "/" + url.PathEscape(ref.LegacyID)
	if err := c.do(ctx, http.MethodGet, path, session.Token, nil, &group); err != nil {
		return nil, c.sessionError(err)
	}

	group.Ref = ref
	if group.Root.Kind == "" {
		group.Root.Kind = ref.Kind
	}
	if group.Root.LegacyID == "" {
		group.Root.LegacyID = ref.LegacyID
	}
	if group.Root.OwnerID == "" {
		group.Root.OwnerID = session.UserID
	}
	for i := range group.Children {
		if group.Children[i].ParentLegacyID == "" {
			group.Children[i].ParentLegacyID = group.Root.LegacyID
		}
		if group.Children[i].OwnerID == "" {
			group.Children[i].OwnerID = session.UserID
		}
	}
	return &group, nil
}

// SendPasswordReset asks the backend to email a reset link
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}

	if err := c.do(ctx, http.MethodPost, "/password-reset", "", body, nil); err != nil {
		return domain.NewAuthError(domain.AuthPasswordResetFailed, "Couldn't send a password reset email. Please try again.", err)
	}
	return nil
}

// SignOut ends the remote session. The stored session is cleared even
// when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	session := c.sessions.LegacySession()
	if session == nil {
		return nil
	}

	remoteErr := c.do(ctx, http.MethodPost, "/logout", session.Token, nil, nil)
	if err := c.sessions.ClearLegacySession(); err != nil {
		return domain.NewAuthError(domain.AuthSignOutFailed, "Couldn't sign out of your old account.", err)
	}
	if remoteErr != nil && !errors.Is(remoteErr, errUnauthorized) {
		return domain.NewAuthError(domain.AuthSignOutFailed, "Couldn't sign out of your old account.", remoteErr)
	}
	return nil
}

// sessionError maps a rejected session to a reauthentication failure
func (c *Client) sessionError(err error) error {
	if errors.Is(err, errUnauthorized) {
		return domain.NewAuthError(domain.AuthReauthenticationFailed, "Your old account session has expired. Please sign in again.", err)
	}
	return err
}

// do performs an HTTP request, encoding in as JSON and decoding the
// response into out when it is non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	reqURL := c.baseURL + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}

	c.logger.Debug("legacy request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error("legacy request failed", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("legacy request error", "status", resp.StatusCode, "body", string(data))
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(data))
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
