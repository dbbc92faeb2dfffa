package domain

import "time"

// ConvergenceProgress is reported on every convergence loop tick.
type ConvergenceProgress struct {
	Elapsed time.Duration
	Timeout time.Duration
	Message string
	Result  ConvergenceResult
	Done    bool
}

// Fraction of the budget used, clamped to [0,1]
func (p ConvergenceProgress) Fraction() float64 {
	if p.Timeout <= 0 {
		return 1
	}
	f := float64(p.Elapsed) / float64(p.Timeout)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// ReportFunc receives convergence progress. It is called from the loop's
// goroutine and must not block.
type ReportFunc func(ConvergenceProgress)
