package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Wait for cloud data on the syncing screen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			result, err := runConvergence(cmd.Context(), out, noTUI(cmd), "Syncing your data", a.SyncScreen.Run)
			if err != nil {
				return err
			}
			if !result.Found {
				fmt.Fprintln(out, "no data arrived yet")
				return nil
			}
			fmt.Fprintf(out, "found %d deliveries\n", result.RecordCount)
			return nil
		},
	}
}
