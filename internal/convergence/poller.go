// Package convergence waits, within a fixed budget, for cloud replication
// to deliver existing data to the local store.
package convergence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/telemetry"
)

const (
	MessageChecking   = "Checking for your data…"
	MessageStill      = "Still looking…"
	MessageAlmostDone = "Almost done…"
)

// Waiter is the remote-change race used before polling starts
type Waiter interface {
	IsCloudAvailable() bool
	WaitForRemoteChange(ctx context.Context, timeout time.Duration) bool
}

// Prober re-reads the local store
type Prober interface {
	Refresh(ctx context.Context) (domain.ConvergenceResult, error)
}

// Params bounds one convergence run
type Params struct {
	Timeout    time.Duration   // Total budget
	SubTimeout time.Duration   // Cap on the initial remote-change wait
	Schedule   []time.Duration // Poll delays; the last one repeats
}

// Poller runs the bounded convergence loop.
type Poller struct {
	waiter  Waiter
	probe   Prober
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewPoller(waiter Waiter, probe Prober, metrics *telemetry.Metrics, logger *slog.Logger) *Poller {
	return &Poller{
		waiter:  waiter,
		probe:   probe,
		metrics: metrics,
		logger:  log.OrDefault(logger),
	}
}

// Run waits until the probe finds data or params.Timeout elapses.
// Running out of time is not an error: the zero result is returned.
// Only context cancellation produces an error. Total time never exceeds
// the deadline by more than one poll interval.
func (p *Poller) Run(ctx context.Context, params Params, report domain.ReportFunc) (domain.ConvergenceResult, error) {
	if len(params.Schedule) == 0 {
		return domain.ConvergenceResult{}, fmt.Errorf("convergence: empty poll schedule")
	}
	if report == nil {
		report = func(domain.ConvergenceProgress) {}
	}

	start := time.Now()
	deadline := start.Add(params.Timeout)

	emit := func(result domain.ConvergenceResult, done bool) {
		elapsed := time.Since(start)
		report(domain.ConvergenceProgress{
			Elapsed: elapsed,
			Timeout: params.Timeout,
			Message: MessageFor(elapsed, params.Timeout, result),
			Result:  result,
			Done:    done,
		})
	}

	finish := func(result domain.ConvergenceResult, outcome string) {
		p.metrics.RecordConvergence(ctx, time.Since(start), outcome)
		p.logger.Info("convergence finished",
			"outcome", outcome,
			"count", result.RecordCount,
			"elapsed", time.Since(start))
	}

	emit(domain.ConvergenceResult{}, false)

	if p.waiter.IsCloudAvailable() {
		wait := min(time.Until(deadline), params.SubTimeout)
		if p.waiter.WaitForRemoteChange(ctx, wait) {
			p.logger.Debug("remote change signalled")
			if result, ok := p.check(ctx); ok {
				emit(result, true)
				finish(result, "found")
				return result, nil
			}
		}
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			finish(domain.ConvergenceResult{}, "cancelled")
			return domain.ConvergenceResult{}, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		delay := min(params.Schedule[min(i, len(params.Schedule)-1)], remaining)
		if err := sleep(ctx, delay); err != nil {
			finish(domain.ConvergenceResult{}, "cancelled")
			return domain.ConvergenceResult{}, err
		}

		result, ok := p.check(ctx)
		if ok {
			emit(result, true)
			finish(result, "found")
			return result, nil
		}
		emit(result, false)
	}

	emit(domain.ConvergenceResult{}, true)
	finish(domain.ConvergenceResult{}, "timeout")
	return domain.ConvergenceResult{}, nil
}

// check refreshes the probe. Read errors count as not found for this tick.
func (p *Poller) check(ctx context.Context) (domain.ConvergenceResult, bool) {
	result, err := p.probe.Refresh(ctx)
	if err != nil {
		p.logger.Warn("probe failed, will retry", "error", err)
		return domain.ConvergenceResult{}, false
	}
	return result, result.Found
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MessageFor returns the status line for elapsed time against the budget.
func MessageFor(elapsed, timeout time.Duration, result domain.ConvergenceResult) string {
	if result.Found {
		if result.RecordCount == 1 {
			return "Found 1 delivery!"
		}
		return fmt.Sprintf("Found %d deliveries!", result.RecordCount)
	}

	fraction := domain.ConvergenceProgress{Elapsed: elapsed, Timeout: timeout}.Fraction()
	switch {
	case fraction < 0.25:
		return MessageChecking
	case fraction < 0.60:
		return MessageStill
	default:
		return MessageAlmostDone
	}
}
