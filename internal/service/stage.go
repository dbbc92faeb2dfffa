package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/stork/internal/config"
	"github.com/mmcdole/stork/internal/convergence"
	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/telemetry"
)

// Migrator is the part of the migration orchestrator the stage service drives
type Migrator interface {
	IsAuthenticated(ctx context.Context) bool
	AttemptLogIn(ctx context.Context, email, password string) string
	PerformMigration(ctx context.Context, target domain.RecordWriter) error
	Retry(ctx context.Context, target domain.RecordWriter) error
	Status() domain.MigrationStatus
}

// Prober re-reads the local store
type Prober interface {
	Refresh(ctx context.Context) (domain.ConvergenceResult, error)
}

// Converger runs the bounded convergence loop
type Converger interface {
	Run(ctx context.Context, params convergence.Params, report domain.ReportFunc) (domain.ConvergenceResult, error)
}

// Flags is the persisted has-synced flag
type Flags interface {
	HasSynced() bool
	SetHasSynced(bool) error
	// Reset clears has-synced and keeps the migrated-user ledger
	Reset() error
}

// StageDeps wires a StageService
type StageDeps struct {
	Migrator Migrator
	Probe    Prober
	Poller   Converger
	Flags    Flags
	Target   domain.RecordWriter // Migration destination
	Budgets  config.ConvergenceConfig
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// StageService decides which top-level experience to show.
type StageService struct {
	deps   StageDeps
	logger *slog.Logger

	// Collapses overlapping PrepareApp calls onto one convergence loop
	group singleflight.Group

	// Serializes transitions with their notifications so observers see
	// changes in order. Never held by readers.
	notifyMu sync.Mutex

	mu        sync.Mutex
	stage     domain.AppStage
	progress  domain.ConvergenceProgress
	observers []domain.StageObserver
	reporters []domain.ReportFunc
}

func NewStageService(deps StageDeps) *StageService {
	return &StageService{
		deps:   deps,
		logger: log.OrDefault(deps.Logger),
		stage:  domain.StageStart,
	}
}

// Observe registers fn to receive every stage change, in order
func (s *StageService) Observe(fn domain.StageObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// OnProgress registers fn to receive convergence progress
func (s *StageService) OnProgress(fn domain.ReportFunc) {
	s.mu.Lock()
	s.reporters = append(s.reporters, fn)
	s.mu.Unlock()
}

func (s *StageService) Stage() domain.AppStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Progress returns the latest convergence progress
func (s *StageService) Progress() domain.ConvergenceProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// PrepareApp resolves the stage to migration, main or splash. Concurrent
// calls share a single run and its result. Running out of time is not an
// error; only cancellation is, and it leaves the stage at checkingCloud
// so the next call runs the loop again.
//
// A caller that joins a run in flight gets that run's error, so when the
// first caller's ctx is cancelled the joiner sees context.Canceled even if
// its own ctx is live. Callers that see a cancellation they did not cause
// should call PrepareApp again.
func (s *StageService) PrepareApp(ctx context.Context) (domain.AppStage, error) {
	v, err, shared := s.group.Do("prepare", func() (any, error) {
		return s.prepare(ctx)
	})
	if shared {
		s.logger.Debug("joined in-flight prepare")
	}
	return v.(domain.AppStage), err
}

func (s *StageService) prepare(ctx context.Context) (domain.AppStage, error) {
	if current := s.Stage(); current == domain.StageMain {
		return current, nil
	}

	if s.deps.Migrator.IsAuthenticated(ctx) {
		return s.moveTo(ctx, domain.StageMigration)
	}

	result, err := s.deps.Probe.Refresh(ctx)
	if err != nil {
		s.logger.Warn("initial probe failed", "error", err)
	}
	if result.Found {
		return s.moveTo(ctx, domain.StageMain)
	}

	if stage, err := s.moveTo(ctx, domain.StageCheckingCloud); err != nil {
		return stage, err
	}

	budget := s.deps.Budgets.FreshInstallTimeout
	if s.deps.Flags.HasSynced() {
		budget = s.deps.Budgets.ReturningUserTimeout
	}
	s.logger.Info("waiting for cloud data", "budget", budget, "returning", s.deps.Flags.HasSynced())

	result, err = s.deps.Poller.Run(ctx, convergence.Params{
		Timeout:    budget,
		SubTimeout: s.deps.Budgets.SubTimeout,
		Schedule:   s.deps.Budgets.PollSchedule,
	}, s.report)
	if err != nil {
		return s.Stage(), err
	}

	if result.Found {
		return s.moveTo(ctx, domain.StageMain)
	}
	return s.moveTo(ctx, domain.StageSplash)
}

// Advance moves to a later stage on behalf of the presentation layer
func (s *StageService) Advance(ctx context.Context, to domain.AppStage) error {
	_, err := s.moveTo(ctx, to)
	return err
}

// Reset returns to splash from any stage and clears the has-synced flag.
// It is the only way out of main.
func (s *StageService) Reset(ctx context.Context) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.stage
	s.stage = domain.StageSplash
	observers := append([]domain.StageObserver(nil), s.observers...)
	s.mu.Unlock()

	s.logger.Info("stage reset", "from", from.String())
	s.deps.Metrics.RecordStageTransition(ctx, from.String(), domain.StageSplash.String())
	for _, fn := range observers {
		fn(domain.StageSplash)
	}

	return s.deps.Flags.Reset()
}

// AttemptLogIn signs in to the legacy backend and, on success, moves to
// the migration stage. It returns a message for the user, "" on success.
func (s *StageService) AttemptLogIn(ctx context.Context, email, password string) string {
	msg := s.deps.Migrator.AttemptLogIn(ctx, email, password)
	if msg != "" {
		return msg
	}
	if _, err := s.moveTo(ctx, domain.StageMigration); err != nil {
		s.logger.Warn("login succeeded outside of splash", "stage", s.Stage().String(), "error", err)
	}
	return ""
}

// PerformMigration runs the migration into the configured target and moves
// to main once it completes.
func (s *StageService) PerformMigration(ctx context.Context) error {
	return s.finishMigration(ctx, s.deps.Migrator.PerformMigration(ctx, s.deps.Target))
}

// RetryMigration re-drives a failed migration. Records already written are
// overwritten in place.
func (s *StageService) RetryMigration(ctx context.Context) error {
	return s.finishMigration(ctx, s.deps.Migrator.Retry(ctx, s.deps.Target))
}

func (s *StageService) finishMigration(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if s.deps.Migrator.Status().Phase != domain.MigrationCompleted {
		return nil
	}
	_, err = s.moveTo(ctx, domain.StageMain)
	return err
}

// MigrationStatus returns the orchestrator's current status
func (s *StageService) MigrationStatus() domain.MigrationStatus {
	return s.deps.Migrator.Status()
}

func (s *StageService) report(p domain.ConvergenceProgress) {
	s.mu.Lock()
	s.progress = p
	reporters := append([]domain.ReportFunc(nil), s.reporters...)
	s.mu.Unlock()

	for _, fn := range reporters {
		fn(p)
	}
}

// moveTo validates and applies a transition, then notifies observers
// outside the lock.
func (s *StageService) moveTo(ctx context.Context, to domain.AppStage) (domain.AppStage, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.stage
	next, err := domain.NextStage(from, to)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("rejected stage transition", "from", from.String(), "to", to.String())
		return from, err
	}
	s.stage = next
	observers := append([]domain.StageObserver(nil), s.observers...)
	s.mu.Unlock()

	if from == next {
		return next, nil
	}

	s.logger.Info("stage changed", "from", from.String(), "to", next.String())
	s.deps.Metrics.RecordStageTransition(ctx, from.String(), next.String())
	for _, fn := range observers {
		fn(next)
	}
	return next, nil
}
