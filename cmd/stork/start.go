package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/stork/internal/domain"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Decide the startup stage and migrate legacy data if signed in",
		Long: `start resolves which experience to show: main when data is already on this
device or arrives from the cloud in time, migration when a legacy session is
present, and splash otherwise. A migration stage runs the migration.`,
		RunE: runStart,
	}
}

func runStart(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	plain := noTUI(cmd)

	_, err = runConvergence(ctx, out, plain, "Getting things ready", func(ctx context.Context, report domain.ReportFunc) (domain.ConvergenceResult, error) {
		a.Stages.OnProgress(report)
		if _, err := a.Stages.PrepareApp(ctx); err != nil {
			return domain.ConvergenceResult{}, err
		}
		return a.Probe.Result(), nil
	})
	if err != nil {
		return err
	}

	if a.Stages.Stage() == domain.StageMigration {
		if err := runMigration(ctx, out, plain, a); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	fmt.Fprintf(out, "stage: %s\n", a.Stages.Stage())
	return nil
}
