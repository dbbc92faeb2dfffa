package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/stork/internal/domain"
)

func newReplicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replicate [file]",
		Short: "Write records into the local store and signal a remote change",
		Long: `replicate plays the part of the replication engine: it reads a JSON array of
records from file (or stdin), writes them into the local store and publishes a
change signal so a waiting start or sync picks them up. Use the sqlite store
and a redis_url to run it alongside another stork process.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReplicate,
	}
	return cmd
}

func runReplicate(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open records file: %w", err)
		}
		defer f.Close()
		in = f
	}

	records, err := readRecords(in)
	if err != nil {
		return err
	}

	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Replicate(cmd.Context(), records); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replicated %d records\n", len(records))
	return nil
}

func readRecords(r io.Reader) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	now := time.Now()
	for i, rec := range records {
		if rec.Kind == "" || rec.LegacyID == "" {
			return nil, fmt.Errorf("record %d: kind and legacy_id are required", i)
		}
		if rec.UpdatedAt.IsZero() {
			records[i].UpdatedAt = now
		}
	}
	return records, nil
}
