package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return to the splash stage and forget that this device has synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.Stages.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stage: %s\n", a.Stages.Stage())
			return nil
		},
	}
}
