package tui

import "github.com/mmcdole/stork/internal/domain"

// ProgressObserver adapts domain.ReportFunc to a channel for Bubble Tea.
type ProgressObserver struct {
	ch chan<- domain.ConvergenceProgress
}

// NewProgressObserver creates a new channel-based observer.
func NewProgressObserver(ch chan<- domain.ConvergenceProgress) *ProgressObserver {
	return &ProgressObserver{ch: ch}
}

// OnProgress sends progress to the channel (non-blocking if full).
func (o *ProgressObserver) OnProgress(progress domain.ConvergenceProgress) {
	select {
	case o.ch <- progress:
	default: // Non-blocking if channel full
	}
}
