package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/stork/internal/domain"
)

// ConvergeFunc runs a bounded wait for data, reporting progress as it goes
type ConvergeFunc func(ctx context.Context, report domain.ReportFunc) (domain.ConvergenceResult, error)

// MigrateFunc runs or retries a migration
type MigrateFunc func(ctx context.Context) error

// RunConvergenceCmd runs fn in the background. Progress is pushed to
// updates; the returned message arrives once fn returns.
func RunConvergenceCmd(ctx context.Context, fn ConvergeFunc, updates chan<- domain.ConvergenceProgress) tea.Cmd {
	return func() tea.Msg {
		result, err := fn(ctx, NewProgressObserver(updates).OnProgress)
		return ConvergedMsg{Result: result, Err: err}
	}
}

// WaitForProgressCmd reads the next update from the progress channel.
// It returns nil once ctx is done so the pump stops with the screen.
func WaitForProgressCmd(ctx context.Context, updates <-chan domain.ConvergenceProgress) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-updates:
			return ProgressMsg{Progress: p}
		case <-ctx.Done():
			return nil
		}
	}
}

// RunMigrationCmd runs fn in the background
func RunMigrationCmd(ctx context.Context, fn MigrateFunc) tea.Cmd {
	return func() tea.Msg {
		return MigrationDoneMsg{Err: fn(ctx)}
	}
}

// WaitForStatusCmd reads the next migration status change
func WaitForStatusCmd(ctx context.Context, statuses <-chan domain.MigrationStatus) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-statuses:
			return StatusMsg{Status: s}
		case <-ctx.Done():
			return nil
		}
	}
}

// QuitAfterCmd quits once the final frame has been on screen for delay
func QuitAfterCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return quitMsg{}
	})
}
