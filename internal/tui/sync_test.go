package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/stork/internal/convergence"
	"github.com/mmcdole/stork/internal/domain"
)

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRunConvergenceCmdPumpsProgress(t *testing.T) {
	t.Parallel()
	updates := make(chan domain.ConvergenceProgress, 4)
	want := domain.ConvergenceResult{Found: true, RecordCount: 2}

	cmd := RunConvergenceCmd(context.Background(), func(_ context.Context, report domain.ReportFunc) (domain.ConvergenceResult, error) {
		report(domain.ConvergenceProgress{Message: convergence.MessageStill})
		return want, nil
	}, updates)

	msg := cmd()
	assert.Equal(t, ConvergedMsg{Result: want}, msg)

	next := WaitForProgressCmd(context.Background(), updates)()
	require.IsType(t, ProgressMsg{}, next)
	assert.Equal(t, convergence.MessageStill, next.(ProgressMsg).Progress.Message)
}

func TestWaitForProgressCmdStopsWithContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, WaitForProgressCmd(ctx, make(chan domain.ConvergenceProgress))())
}

func TestSyncModel(t *testing.T) {
	t.Parallel()

	m := NewSyncModel(context.Background(), "Syncing", func(context.Context, domain.ReportFunc) (domain.ConvergenceResult, error) {
		return domain.ConvergenceResult{}, nil
	})
	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), convergence.MessageChecking)

	_, cmd := m.Update(ProgressMsg{Progress: domain.ConvergenceProgress{
		Elapsed: 6 * time.Second,
		Timeout: 10 * time.Second,
		Message: convergence.MessageAlmostDone,
	}})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), convergence.MessageAlmostDone)
	assert.InDelta(t, 0.6, m.fraction(), 0.001)

	found := domain.ConvergenceResult{Found: true, RecordCount: 3}
	_, cmd = m.Update(ConvergedMsg{Result: found})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Found 3 deliveries!")
	assert.Equal(t, 1.0, m.fraction())

	result, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, found, result)

	_, cmd = m.Update(quitMsg{})
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestSyncModelNotFoundAndError(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, domain.ReportFunc) (domain.ConvergenceResult, error) {
		return domain.ConvergenceResult{}, nil
	}

	m := NewSyncModel(context.Background(), "Syncing", noop)
	m.Update(ConvergedMsg{})
	assert.Contains(t, m.View(), "No data yet")

	m = NewSyncModel(context.Background(), "Syncing", noop)
	m.Update(ConvergedMsg{Err: errors.New("context canceled")})
	assert.Contains(t, m.View(), "context canceled")
	_, err := m.Result()
	assert.Error(t, err)
}

func TestSyncModelQuitCancelsRun(t *testing.T) {
	t.Parallel()
	m := NewSyncModel(context.Background(), "Syncing", nil)

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
	assert.Empty(t, m.View())
}
