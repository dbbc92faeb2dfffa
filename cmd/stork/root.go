package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmcdole/stork/internal/app"
	"github.com/mmcdole/stork/internal/config"
	"github.com/mmcdole/stork/internal/log"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "stork",
		Short:             "Bring your data to this device",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Long: `stork decides what to show at startup: it waits a bounded time for
cloud data to arrive, migrates data from the legacy backend when a legacy
session is present, and otherwise falls back to the splash screen.`,
	}

	root.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to the config file")
	root.PersistentFlags().Bool("no-tui", false, "Print progress lines instead of the full-screen UI")

	root.AddCommand(
		newStartCmd(),
		newSyncCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newResetPasswordCmd(),
		newResetCmd(),
		newReplicateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stork %s\n", Version)
		},
	}
}

// openApp loads configuration, sets up logging and builds the service
// graph. The returned func releases everything.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	closeLog := func() {}
	logger, logFile, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		closeLog = func() { _ = logFile.Close() }
	}
	slog.SetDefault(logger)

	logger.Info("starting stork", "version", Version, "command", cmd.Name())

	a, err := app.New(cfg, logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		logger.Info("shutting down")
		closeLog()
	}
	return a, cleanup, nil
}

func noTUI(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("no-tui")
	return v
}
