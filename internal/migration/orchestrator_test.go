package migration

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/domain/mocks"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/state"
	"github.com/mmcdole/stork/internal/store"
)

var session = &domain.LegacySession{UserID: "user-1", Email: "mom@example.com", Token: "tok"}

func groups() map[domain.GroupRef]*domain.RecordGroup {
	out := map[domain.GroupRef]*domain.RecordGroup{}
	for _, g := range []domain.RecordGroup{
		{
			Ref:  domain.GroupRef{Kind: domain.KindProfile, LegacyID: "p-1"},
			Root: domain.Record{Kind: domain.KindProfile, LegacyID: "p-1"},
		},
		{
			Ref:      domain.GroupRef{Kind: domain.KindDelivery, LegacyID: "d-1"},
			Root:     domain.Record{Kind: domain.KindDelivery, LegacyID: "d-1"},
			Children: []domain.Record{{Kind: domain.KindBaby, LegacyID: "b-1", ParentLegacyID: "d-1"}},
		},
		{
			Ref:  domain.GroupRef{Kind: domain.KindDelivery, LegacyID: "d-2"},
			Root: domain.Record{Kind: domain.KindDelivery, LegacyID: "d-2"},
		},
	} {
		out[g.Ref] = &g
	}
	return out
}

var refs = []domain.GroupRef{
	{Kind: domain.KindProfile, LegacyID: "p-1"},
	{Kind: domain.KindDelivery, LegacyID: "d-1"},
	{Kind: domain.KindDelivery, LegacyID: "d-2"},
}

type fixture struct {
	backend *mocks.MockLegacyBackend
	ledger  *state.Store
	store   *store.BoltStore
	orch    *Orchestrator

	mu       sync.Mutex
	statuses []domain.MigrationStatus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	ledger, err := state.Open(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "stork.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		backend: mocks.NewMockLegacyBackend(ctrl),
		ledger:  ledger,
		store:   s,
	}
	f.orch = New(f.backend, ledger, nil, log.NullLogger())
	f.orch.Observe(func(st domain.MigrationStatus) {
		f.mu.Lock()
		f.statuses = append(f.statuses, st)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) phases() []domain.MigrationPhase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MigrationPhase, len(f.statuses))
	for i, s := range f.statuses {
		out[i] = s.Phase
	}
	return out
}

func (f *fixture) progress() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []float64
	for _, s := range f.statuses {
		if s.Phase == domain.MigrationRunning {
			out = append(out, s.Progress)
		}
	}
	return out
}

func (f *fixture) expectHappyBackend() {
	all := groups()
	f.backend.EXPECT().CurrentSession(gomock.Any()).Return(session, nil).AnyTimes()
	f.backend.EXPECT().ListOwnedGroups(gomock.Any(), session).Return(refs, nil).AnyTimes()
	f.backend.EXPECT().FetchGroup(gomock.Any(), session, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.LegacySession, ref domain.GroupRef) (*domain.RecordGroup, error) {
			return all[ref], nil
		}).AnyTimes()
	f.backend.EXPECT().SignOut(gomock.Any()).Return(nil).AnyTimes()
}

func count(t *testing.T, s domain.Store, kind domain.Kind) int {
	t.Helper()
	s.Refresh()
	n, err := s.Count(context.Background(), kind)
	require.NoError(t, err)
	return n
}

func TestPerformMigration_Completes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectHappyBackend()

	require.NoError(t, f.orch.PerformMigration(context.Background(), f.store))

	assert.Equal(t, domain.Completed(), f.orch.Status())
	assert.Equal(t, []domain.MigrationPhase{
		domain.MigrationPreparing,
		domain.MigrationRunning, // 0
		domain.MigrationRunning, // 1/4
		domain.MigrationRunning, // 2/4
		domain.MigrationRunning, // 3/4
		domain.MigrationRunning, // 1.0
		domain.MigrationCompleted,
	}, f.phases())
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, f.progress())

	assert.Equal(t, 2, count(t, f.store, domain.KindDelivery))
	assert.Equal(t, 1, count(t, f.store, domain.KindBaby))
	assert.Equal(t, 1, count(t, f.store, domain.KindProfile))
	assert.True(t, f.ledger.IsMigrated("user-1"))

	rec, ok, err := f.store.Get(context.Background(), domain.KindDelivery, "d-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-1", rec.OwnerID)
}

func TestPerformMigration_CompletedIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectHappyBackend()
	ctx := context.Background()

	require.NoError(t, f.orch.PerformMigration(ctx, f.store))
	n := len(f.phases())

	require.NoError(t, f.orch.PerformMigration(ctx, f.store))
	require.NoError(t, f.orch.Retry(ctx, f.store))
	assert.Len(t, f.phases(), n, "no transitions after completion")
	assert.Equal(t, domain.Completed(), f.orch.Status())
}

func TestPerformMigration_TwiceDoesNotDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectHappyBackend()
	ctx := context.Background()

	require.NoError(t, f.orch.PerformMigration(ctx, f.store))
	before := count(t, f.store, domain.KindDelivery) + count(t, f.store, domain.KindBaby)

	// A second orchestrator for the same session writes the same keys
	second := New(f.backend, f.ledger, nil, log.NullLogger())
	require.NoError(t, second.PerformMigration(ctx, f.store))

	after := count(t, f.store, domain.KindDelivery) + count(t, f.store, domain.KindBaby)
	assert.Equal(t, before, after)
}

func TestPerformMigration_FailureThenRetry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	all := groups()
	offline := errors.New("connection reset by peer")

	f.backend.EXPECT().CurrentSession(gomock.Any()).Return(session, nil).AnyTimes()
	f.backend.EXPECT().ListOwnedGroups(gomock.Any(), session).Return(refs, nil).AnyTimes()
	gomock.InOrder(
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[0]).Return(all[refs[0]], nil),
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[1]).Return(all[refs[1]], nil),
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[2]).Return(nil, offline),
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[0]).Return(all[refs[0]], nil),
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[1]).Return(all[refs[1]], nil),
		f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[2]).Return(all[refs[2]], nil),
	)
	f.backend.EXPECT().SignOut(gomock.Any()).Return(nil)

	err := f.orch.PerformMigration(ctx, f.store)
	require.ErrorIs(t, err, offline)
	status := f.orch.Status()
	assert.Equal(t, domain.MigrationFailed, status.Phase)
	assert.Contains(t, status.Reason, "connection reset by peer")
	assert.Equal(t, 1, count(t, f.store, domain.KindDelivery), "written records are kept")
	assert.False(t, f.ledger.IsMigrated("user-1"))

	// Only Retry leaves failed
	err = f.orch.PerformMigration(ctx, f.store)
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	require.NoError(t, f.orch.Retry(ctx, f.store))
	assert.Equal(t, domain.Completed(), f.orch.Status())
	assert.Equal(t, 2, count(t, f.store, domain.KindDelivery))
	assert.Equal(t, 1, count(t, f.store, domain.KindBaby))

	phases := f.phases()
	failedAt := -1
	for i, p := range phases {
		if p == domain.MigrationFailed {
			failedAt = i
		}
	}
	require.GreaterOrEqual(t, failedAt, 0)
	assert.Equal(t, domain.MigrationPreparing, phases[failedAt+1])
}

func TestPerformMigration_WriteErrorFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.expectHappyBackend()
	require.NoError(t, f.store.Close())

	err := f.orch.PerformMigration(context.Background(), f.store)
	require.ErrorIs(t, err, domain.ErrStoreClosed)
	assert.Equal(t, domain.MigrationFailed, f.orch.Status().Phase)
}

func TestPerformMigration_NoSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.EXPECT().CurrentSession(gomock.Any()).Return(nil, nil)

	err := f.orch.PerformMigration(context.Background(), f.store)
	require.Error(t, err)
	assert.True(t, domain.IsAuthError(err, domain.AuthReauthenticationFailed))
	assert.Equal(t, domain.Failed("Please sign in to your old account again."), f.orch.Status())
}

func TestPerformMigration_SignOutFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	all := groups()
	f.backend.EXPECT().CurrentSession(gomock.Any()).Return(session, nil).AnyTimes()
	f.backend.EXPECT().ListOwnedGroups(gomock.Any(), session).Return(refs[:1], nil)
	f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[0]).Return(all[refs[0]], nil)
	f.backend.EXPECT().SignOut(gomock.Any()).Return(errors.New("timeout"))

	require.NoError(t, f.orch.PerformMigration(context.Background(), f.store))
	assert.Equal(t, domain.Completed(), f.orch.Status())

	// The ledger keeps the still-present session from counting as pending
	assert.False(t, f.orch.IsAuthenticated(context.Background()))
}

func TestPerformMigration_ConcurrentCallIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	all := groups()
	release := make(chan struct{})
	fetching := make(chan struct{})

	f.backend.EXPECT().CurrentSession(gomock.Any()).Return(session, nil).AnyTimes()
	f.backend.EXPECT().ListOwnedGroups(gomock.Any(), session).Return(refs[:1], nil).Times(1)
	f.backend.EXPECT().FetchGroup(gomock.Any(), session, refs[0]).
		DoAndReturn(func(context.Context, *domain.LegacySession, domain.GroupRef) (*domain.RecordGroup, error) {
			close(fetching)
			<-release
			return all[refs[0]], nil
		}).Times(1)
	f.backend.EXPECT().SignOut(gomock.Any()).Return(nil)

	done := make(chan error, 1)
	go func() { done <- f.orch.PerformMigration(context.Background(), f.store) }()

	select {
	case <-fetching:
	case <-time.After(2 * time.Second):
		t.Fatal("migration did not start")
	}

	require.NoError(t, f.orch.PerformMigration(context.Background(), f.store))
	require.NoError(t, f.orch.Retry(context.Background(), f.store))
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, domain.Completed(), f.orch.Status())
}

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.backend.EXPECT().CurrentSession(gomock.Any()).Return(nil, nil)
		assert.False(t, f.orch.IsAuthenticated(ctx))
	})

	t.Run("lookup error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.backend.EXPECT().CurrentSession(gomock.Any()).Return(nil, errors.New("corrupt"))
		assert.False(t, f.orch.IsAuthenticated(ctx))
	})

	t.Run("expired session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expired := &domain.LegacySession{UserID: "user-1", Token: "t", ExpiresAt: time.Now().Add(-time.Hour)}
		f.backend.EXPECT().CurrentSession(gomock.Any()).Return(expired, nil)
		assert.False(t, f.orch.IsAuthenticated(ctx))
	})

	t.Run("live session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.backend.EXPECT().CurrentSession(gomock.Any()).Return(session, nil)
		assert.True(t, f.orch.IsAuthenticated(ctx))
	})
}

func TestAttemptLogIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	gomock.InOrder(
		f.backend.EXPECT().Authenticate(gomock.Any(), "mom@example.com", "bad").
			Return(nil, domain.NewAuthError(domain.AuthLoginFailed, "Incorrect email or password.", nil)),
		f.backend.EXPECT().Authenticate(gomock.Any(), "mom@example.com", "flaky").
			Return(nil, errors.New("EOF")),
		f.backend.EXPECT().Authenticate(gomock.Any(), "mom@example.com", "hunter2").
			Return(session, nil),
	)

	assert.Equal(t, "Incorrect email or password.", f.orch.AttemptLogIn(ctx, "mom@example.com", "bad"))
	assert.Equal(t, genericLoginFailure, f.orch.AttemptLogIn(ctx, "mom@example.com", "flaky"))
	assert.Empty(t, f.orch.AttemptLogIn(ctx, "mom@example.com", "hunter2"))
}

func TestAuthErrorKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.backend.EXPECT().SendPasswordReset(gomock.Any(), "x").Return(errors.New("400"))
	f.backend.EXPECT().SignOut(gomock.Any()).Return(errors.New("503"))
	f.backend.EXPECT().Authenticate(gomock.Any(), "a", "b").Return(nil, errors.New("EOF"))

	assert.True(t, domain.IsAuthError(f.orch.SendPasswordReset(ctx, "x"), domain.AuthPasswordResetFailed))
	assert.True(t, domain.IsAuthError(f.orch.SignOut(ctx), domain.AuthSignOutFailed))
	assert.True(t, domain.IsAuthError(f.orch.LogInUserWithEmail(ctx, "a", "b"), domain.AuthLoginFailed))
}
