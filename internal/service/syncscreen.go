package service

import (
	"context"
	"log/slog"

	"github.com/mmcdole/stork/internal/config"
	"github.com/mmcdole/stork/internal/convergence"
	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
)

// SyncScreenService backs the dedicated syncing screen shown after the
// user says they already have an account.
type SyncScreenService struct {
	stages  *StageService
	probe   Prober
	poller  Converger
	flags   Flags
	budgets config.ConvergenceConfig
	logger  *slog.Logger
}

func NewSyncScreenService(stages *StageService, probe Prober, poller Converger, flags Flags, budgets config.ConvergenceConfig, logger *slog.Logger) *SyncScreenService {
	return &SyncScreenService{
		stages:  stages,
		probe:   probe,
		poller:  poller,
		flags:   flags,
		budgets: budgets,
		logger:  log.OrDefault(logger),
	}
}

// Run waits up to the sync-screen budget for data to arrive. On the first
// success it persists the has-synced flag, shortening the budget of every
// later launch, and moves the app to main. Data that is already local
// finishes the screen without waiting on the cloud.
func (s *SyncScreenService) Run(ctx context.Context, report domain.ReportFunc) (domain.ConvergenceResult, error) {
	result, err := s.probe.Refresh(ctx)
	if err != nil {
		s.logger.Warn("local store refresh failed", "error", err)
	}
	if err == nil && result.Found {
		if report != nil {
			report(domain.ConvergenceProgress{
				Timeout: s.budgets.SyncScreenTimeout,
				Message: convergence.MessageFor(0, s.budgets.SyncScreenTimeout, result),
				Result:  result,
				Done:    true,
			})
		}
		return s.succeed(ctx, result), nil
	}

	result, err = s.poller.Run(ctx, convergence.Params{
		Timeout:    s.budgets.SyncScreenTimeout,
		SubTimeout: s.budgets.SubTimeout,
		Schedule:   s.budgets.PollSchedule,
	}, report)
	if err != nil || !result.Found {
		return result, err
	}
	return s.succeed(ctx, result), nil
}

func (s *SyncScreenService) succeed(ctx context.Context, result domain.ConvergenceResult) domain.ConvergenceResult {
	if !s.flags.HasSynced() {
		if err := s.flags.SetHasSynced(true); err != nil {
			s.logger.Error("failed to persist has-synced flag", "error", err)
		}
	}
	if err := s.stages.Advance(ctx, domain.StageMain); err != nil {
		s.logger.Warn("sync finished outside of a stage that can reach main", "error", err)
	}
	return result
}
