package domain

import "fmt"

// MigrationPhase is the tag of a MigrationStatus
type MigrationPhase int

const (
	MigrationIdle MigrationPhase = iota
	MigrationPreparing
	MigrationRunning
	MigrationCompleted
	MigrationFailed
)

func (p MigrationPhase) String() string {
	switch p {
	case MigrationIdle:
		return "idle"
	case MigrationPreparing:
		return "preparing"
	case MigrationRunning:
		return "running"
	case MigrationCompleted:
		return "completed"
	case MigrationFailed:
		return "failed"
	default:
		return fmt.Sprintf("MigrationPhase(%d)", int(p))
	}
}

// MigrationStatus reports where a migration run is.
// Message is set for preparing and running, Progress for running,
// Reason for failed.
type MigrationStatus struct {
	Phase    MigrationPhase
	Message  string
	Progress float64
	Reason   string
}

func Idle() MigrationStatus { return MigrationStatus{Phase: MigrationIdle} }

func Preparing(message string) MigrationStatus {
	return MigrationStatus{Phase: MigrationPreparing, Message: message}
}

func Running(message string, progress float64) MigrationStatus {
	return MigrationStatus{Phase: MigrationRunning, Message: message, Progress: progress}
}

func Completed() MigrationStatus {
	return MigrationStatus{Phase: MigrationCompleted, Progress: 1}
}

func Failed(reason string) MigrationStatus {
	return MigrationStatus{Phase: MigrationFailed, Reason: reason}
}

func (s MigrationStatus) String() string {
	switch s.Phase {
	case MigrationPreparing:
		return fmt.Sprintf("preparing(%q)", s.Message)
	case MigrationRunning:
		return fmt.Sprintf("running(%q, %.2f)", s.Message, s.Progress)
	case MigrationFailed:
		return fmt.Sprintf("failed(%q)", s.Reason)
	default:
		return s.Phase.String()
	}
}

// Terminal reports whether no further transition is possible
func (s MigrationStatus) Terminal() bool {
	return s.Phase == MigrationCompleted
}

// Next validates the move from s to next and returns the new status.
//
//	idle      -> preparing
//	preparing -> running | failed
//	running   -> running (progress never decreases) | completed | failed
//	failed    -> preparing
//
// Completed only follows a running status that reached 1.0.
func (s MigrationStatus) Next(next MigrationStatus) (MigrationStatus, error) {
	if next.Progress < 0 || next.Progress > 1 {
		return s, fmt.Errorf("%w: progress %.2f out of range", ErrIllegalTransition, next.Progress)
	}

	ok := false
	switch s.Phase {
	case MigrationIdle:
		ok = next.Phase == MigrationPreparing
	case MigrationPreparing:
		ok = next.Phase == MigrationRunning || next.Phase == MigrationFailed
	case MigrationRunning:
		switch next.Phase {
		case MigrationRunning:
			ok = next.Progress >= s.Progress
		case MigrationCompleted:
			ok = s.Progress == 1
		case MigrationFailed:
			ok = true
		}
	case MigrationFailed:
		ok = next.Phase == MigrationPreparing
	}

	if !ok {
		return s, fmt.Errorf("%w: migration %s -> %s", ErrIllegalTransition, s, next)
	}
	if next.Phase == MigrationCompleted {
		next.Progress = 1
	}
	return next, nil
}
