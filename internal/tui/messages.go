package tui

import (
	"github.com/mmcdole/stork/internal/domain"
)

// Message types for the TUI

// ProgressMsg carries one convergence progress update
type ProgressMsg struct {
	Progress domain.ConvergenceProgress
}

// ConvergedMsg signals that the convergence loop returned
type ConvergedMsg struct {
	Result domain.ConvergenceResult
	Err    error
}

// StatusMsg carries one migration status change
type StatusMsg struct {
	Status domain.MigrationStatus
}

// MigrationDoneMsg signals that a migration or retry call returned
type MigrationDoneMsg struct {
	Err error
}

// quitMsg ends the program after the final frame has been shown
type quitMsg struct{}
