package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/stork/internal/app"
	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/tui"
)

// runConvergence shows fn on the sync screen, or as plain progress lines
// when plain is set.
func runConvergence(ctx context.Context, out io.Writer, plain bool, title string, fn tui.ConvergeFunc) (domain.ConvergenceResult, error) {
	if plain {
		fmt.Fprintln(out, title)
		last := ""
		return fn(ctx, func(p domain.ConvergenceProgress) {
			if p.Message != last {
				last = p.Message
				fmt.Fprintf(out, "  %s\n", p.Message)
			}
		})
	}

	model := tui.NewSyncModel(ctx, title, fn)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return domain.ConvergenceResult{}, fmt.Errorf("TUI error: %w", err)
	}
	return model.Result()
}

// runMigration drives the migration on the migration screen. Without the
// UI a failed run is retried once.
func runMigration(ctx context.Context, out io.Writer, plain bool, a *app.App) error {
	if plain {
		a.Migration.Observe(func(s domain.MigrationStatus) {
			fmt.Fprintf(out, "  %s\n", describeStatus(s))
		})
		err := a.Stages.PerformMigration(ctx)
		if err != nil && a.Stages.MigrationStatus().Phase == domain.MigrationFailed {
			fmt.Fprintln(out, "  retrying…")
			err = a.Stages.RetryMigration(ctx)
		}
		return err
	}

	statuses := make(chan domain.MigrationStatus, 32)
	a.Migration.Observe(domain.ChannelStatusObserver{Ch: statuses}.Observe)

	model := tui.NewMigrationModel(ctx, a.Stages, statuses)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if model.Status().Phase != domain.MigrationCompleted {
		return model.Err()
	}
	return nil
}

func describeStatus(s domain.MigrationStatus) string {
	switch s.Phase {
	case domain.MigrationRunning:
		return fmt.Sprintf("%3.0f%% %s", s.Progress*100, s.Message)
	case domain.MigrationFailed:
		return "failed: " + s.Reason
	case domain.MigrationCompleted:
		return "done"
	default:
		return s.Message
	}
}
