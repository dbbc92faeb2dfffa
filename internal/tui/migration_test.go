package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/stork/internal/domain"
)

// fakeMigrator fails the first run and completes on retry
type fakeMigrator struct {
	mu      sync.Mutex
	status  domain.MigrationStatus
	retries int
}

func (f *fakeMigrator) PerformMigration(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = domain.Failed("The connection was lost.")
	return errors.New("connection lost")
}

func (f *fakeMigrator) RetryMigration(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	f.status = domain.Completed()
	return nil
}

func (f *fakeMigrator) MigrationStatus() domain.MigrationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func TestMigrationModelRetry(t *testing.T) {
	t.Parallel()
	migrator := &fakeMigrator{status: domain.Idle()}
	statuses := make(chan domain.MigrationStatus, 8)
	m := NewMigrationModel(context.Background(), migrator, statuses)
	require.NotNil(t, m.Init())

	// Retry is ignored while the first run is in flight
	_, cmd := m.Update(keyPress("r"))
	assert.Nil(t, cmd)

	m.Update(StatusMsg{Status: domain.Running("Copying deliveries", 0.5)})
	assert.Contains(t, m.View(), "Copying deliveries")

	done := RunMigrationCmd(context.Background(), migrator.PerformMigration)()
	_, cmd = m.Update(done)
	assert.Nil(t, cmd)
	assert.Equal(t, domain.MigrationFailed, m.Status().Phase)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "The connection was lost.")
	assert.Contains(t, m.View(), "retry")

	_, cmd = m.Update(keyPress("r"))
	require.NotNil(t, cmd)
	_, cmd = m.Update(cmd())
	require.NotNil(t, cmd)

	assert.Equal(t, 1, migrator.retries)
	assert.Equal(t, domain.MigrationCompleted, m.Status().Phase)
	assert.NoError(t, m.Err())
	assert.Contains(t, m.View(), "All your data is here.")

	_, cmd = m.Update(quitMsg{})
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestWaitForStatusCmd(t *testing.T) {
	t.Parallel()
	statuses := make(chan domain.MigrationStatus, 1)
	statuses <- domain.Preparing("Connecting…")

	msg := WaitForStatusCmd(context.Background(), statuses)()
	assert.Equal(t, StatusMsg{Status: domain.Preparing("Connecting…")}, msg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, WaitForStatusCmd(ctx, statuses)())
}
