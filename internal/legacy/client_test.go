package legacy_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/legacy"
	"github.com/mmcdole/stork/internal/legacy/legacytest"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/state"
)

func setup(t *testing.T) (*legacy.Client, *legacytest.Server, *state.Store) {
	t.Helper()
	srv := legacytest.NewServer(t)
	srv.AddUser("mom@example.com", "hunter2", "user-1",
		legacytest.Profile("p-1"),
		legacytest.Delivery("d-1", "b-1", "b-2"),
	)

	st, err := state.Open(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)

	return legacy.NewClient(srv.URL, 5*time.Second, st, log.NullLogger()), srv, st
}

func TestClient_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, st := setup(t)

	session, err := c.Authenticate(ctx, "mom@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.True(t, session.Authenticated())
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	stored := st.LegacySession()
	require.NotNil(t, stored)
	assert.Equal(t, session.Token, stored.Token)

	current, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "user-1", current.UserID)
}

func TestClient_AuthenticateFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, st := setup(t)

	_, err := c.Authenticate(ctx, "mom@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, domain.IsAuthError(err, domain.AuthLoginFailed))
	assert.Equal(t, "Incorrect email or password.", err.Error())
	assert.Nil(t, st.LegacySession())

	unreachable := legacy.NewClient("http://127.0.0.1:1", time.Second, st, log.NullLogger())
	_, err = unreachable.Authenticate(ctx, "mom@example.com", "hunter2")
	require.Error(t, err)
	assert.True(t, domain.IsAuthError(err, domain.AuthLoginFailed))
	assert.ErrorIs(t, err, domain.ErrBackendUnreachable)
}

func TestClient_FetchOwnedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, _ := setup(t)

	session, err := c.Authenticate(ctx, "mom@example.com", "hunter2")
	require.NoError(t, err)

	refs, err := c.ListOwnedGroups(ctx, session)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, domain.GroupRef{Kind: domain.KindDelivery, LegacyID: "d-1"}, refs[1])

	group, err := c.FetchGroup(ctx, session, refs[1])
	require.NoError(t, err)
	assert.Equal(t, "d-1", group.Root.LegacyID)
	assert.Equal(t, "user-1", group.Root.OwnerID)
	require.Len(t, group.Children, 2)
	for _, child := range group.Children {
		assert.Equal(t, "d-1", child.ParentLegacyID)
		assert.Equal(t, "user-1", child.OwnerID)
	}
}

func TestClient_RejectedSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, _ := setup(t)

	forged := &domain.LegacySession{UserID: "user-1", Token: "forged"}
	_, err := c.ListOwnedGroups(ctx, forged)
	require.Error(t, err)
	assert.True(t, domain.IsAuthError(err, domain.AuthReauthenticationFailed))

	_, err = c.ListOwnedGroups(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNoLegacySession)
}

func TestClient_FetchGroupServerError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, srv, _ := setup(t)
	srv.FailFetches("d-1", 1)

	session, err := c.Authenticate(ctx, "mom@example.com", "hunter2")
	require.NoError(t, err)

	ref := domain.GroupRef{Kind: domain.KindDelivery, LegacyID: "d-1"}
	_, err = c.FetchGroup(ctx, session, ref)
	require.Error(t, err)
	var authErr *domain.AuthError
	assert.False(t, errors.As(err, &authErr))

	_, err = c.FetchGroup(ctx, session, ref)
	assert.NoError(t, err)
}

func TestClient_SendPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, srv, _ := setup(t)

	require.NoError(t, c.SendPasswordReset(ctx, "mom@example.com"))
	assert.Equal(t, []string{"mom@example.com"}, srv.Resets())

	err := c.SendPasswordReset(ctx, "not-an-email")
	assert.True(t, domain.IsAuthError(err, domain.AuthPasswordResetFailed))
}

func TestClient_SignOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, srv, st := setup(t)

	require.NoError(t, c.SignOut(ctx), "no session is a no-op")

	_, err := c.Authenticate(ctx, "mom@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))
	assert.Nil(t, st.LegacySession())
	assert.Equal(t, 1, srv.Logouts())

	current, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_ExpiredSessionIsNotCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _, st := setup(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, st.SetLegacySession(&domain.LegacySession{
		UserID: "user-1", Token: token, ExpiresAt: time.Now().Add(-time.Minute),
	}))

	current, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}
