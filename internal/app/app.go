// Package app builds the stork service graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/stork/internal/cloud"
	"github.com/mmcdole/stork/internal/config"
	"github.com/mmcdole/stork/internal/convergence"
	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/legacy"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/migration"
	"github.com/mmcdole/stork/internal/probe"
	"github.com/mmcdole/stork/internal/service"
	"github.com/mmcdole/stork/internal/state"
	"github.com/mmcdole/stork/internal/store"
	"github.com/mmcdole/stork/internal/telemetry"
)

// App holds every long-lived service. Build it with New and release it
// with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store    domain.Store
	State    *state.Store
	Notifier domain.ChangeNotifier
	Legacy   *legacy.Client

	Probe      *probe.Probe
	Waiter     *cloud.Waiter
	Poller     *convergence.Poller
	Migration  *migration.Orchestrator
	Stages     *service.StageService
	SyncScreen *service.SyncScreenService

	telemetry *telemetry.Provider
	publish   func(context.Context) error
	closers   []io.Closer
}

// New opens the store and state file and wires the services
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger = log.OrDefault(logger)
	a := &App{Config: cfg, Logger: logger}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		a.telemetry = telemetry.NewProvider()
		m, err := telemetry.NewMetrics(a.telemetry.MeterProvider())
		if err != nil {
			logger.Warn("metrics disabled", "error", err)
		}
		metrics = m
	}

	st, err := state.Open(cfg.StatePath())
	if err != nil {
		return nil, err
	}
	a.State = st

	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = s
	a.closers = append(a.closers, s)

	a.Notifier, a.publish = a.newNotifier()

	a.Legacy = legacy.NewClient(cfg.Legacy.URL, cfg.Legacy.Timeout, st, logger.With("component", "legacy"))
	a.Probe = probe.New(s, logger.With("component", "probe"))
	a.Waiter = cloud.NewWaiter(a.Notifier, logger.With("component", "cloud"))
	a.Poller = convergence.NewPoller(a.Waiter, a.Probe, metrics, logger.With("component", "convergence"))
	a.Migration = migration.New(a.Legacy, st, metrics, logger.With("component", "migration"))

	a.Stages = service.NewStageService(service.StageDeps{
		Migrator: a.Migration,
		Probe:    a.Probe,
		Poller:   a.Poller,
		Flags:    st,
		Target:   s,
		Budgets:  cfg.Convergence,
		Metrics:  metrics,
		Logger:   logger.With("component", "stage"),
	})
	a.SyncScreen = service.NewSyncScreenService(a.Stages, a.Probe, a.Poller, st, cfg.Convergence, logger.With("component", "sync"))

	return a, nil
}

// newNotifier prefers Redis when configured. An unreachable Redis falls
// back to an unavailable in-process hub so startup still converges by
// polling.
func (a *App) newNotifier() (domain.ChangeNotifier, func(context.Context) error) {
	cfg := a.Config.Cloud
	if cfg.RedisURL != "" {
		n, err := cloud.NewRedisNotifier(cfg.RedisURL, cfg.Channel, a.Logger.With("component", "redis"))
		if err == nil {
			a.closers = append(a.closers, n)
			return n, n.Publish
		}
		a.Logger.Warn("redis notifier unavailable, polling only", "error", err)
		hub := cloud.NewHub(false)
		return hub, func(context.Context) error { hub.Publish(); return nil }
	}

	hub := cloud.NewHub(cfg.Available)
	return hub, func(context.Context) error { hub.Publish(); return nil }
}

// Replicate writes records the way the replication engine does and then
// signals a remote change.
func (a *App) Replicate(ctx context.Context, records []domain.Record) error {
	for _, rec := range records {
		if err := a.Store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("replicate %s %s: %w", rec.Kind, rec.LegacyID, err)
		}
	}
	if err := a.publish(ctx); err != nil {
		return fmt.Errorf("signal change: %w", err)
	}
	a.Logger.Info("replicated records", "count", len(records))
	return nil
}

// Close releases the store and notifier and flushes the metrics summary
func (a *App) Close() error {
	var errs []error
	if err := a.telemetry.Shutdown(context.Background(), a.Logger); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
