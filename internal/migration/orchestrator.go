// Package migration copies a user's records from the legacy backend into
// the local store, exactly once per legacy session.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
	"github.com/mmcdole/stork/internal/telemetry"
)

const (
	msgConnecting   = "Connecting to your old account…"
	msgReconnecting = "Reconnecting to your old account…"
	msgCopying      = "Copying your data…"
	msgFinishing    = "Finishing up…"

	genericLoginFailure = "Sign in failed. Please try again."
)

// Orchestrator drives the legacy login and migration state machine.
type Orchestrator struct {
	backend domain.LegacyBackend
	ledger  domain.SessionStore
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	status    domain.MigrationStatus
	running   bool
	observers []domain.StatusObserver
}

func New(backend domain.LegacyBackend, ledger domain.SessionStore, metrics *telemetry.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		ledger:  ledger,
		metrics: metrics,
		logger:  log.OrDefault(logger),
		status:  domain.Idle(),
	}
}

// Observe registers fn to receive every status change, in order
func (o *Orchestrator) Observe(fn domain.StatusObserver) {
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

func (o *Orchestrator) Status() domain.MigrationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// IsAuthenticated reports whether a usable legacy session exists whose
// user has not been migrated on this device yet.
func (o *Orchestrator) IsAuthenticated(ctx context.Context) bool {
	session, err := o.backend.CurrentSession(ctx)
	if err != nil {
		o.logger.Warn("legacy session lookup failed", "error", err)
		return false
	}
	if !session.Authenticated() {
		return false
	}
	return !o.ledger.IsMigrated(session.UserID)
}

// LogInUserWithEmail authenticates against the legacy backend. Failures
// are always *domain.AuthError.
func (o *Orchestrator) LogInUserWithEmail(ctx context.Context, email, password string) error {
	_, err := o.backend.Authenticate(ctx, email, password)
	if err != nil {
		o.logger.Info("legacy login failed", "error", err)
		return asAuthError(err, domain.AuthLoginFailed, genericLoginFailure)
	}
	return nil
}

// AttemptLogIn returns a message for the user, or "" on success
func (o *Orchestrator) AttemptLogIn(ctx context.Context, email, password string) string {
	err := o.LogInUserWithEmail(ctx, email, password)
	if err == nil {
		return ""
	}
	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return genericLoginFailure
}

func (o *Orchestrator) SendPasswordReset(ctx context.Context, email string) error {
	if err := o.backend.SendPasswordReset(ctx, email); err != nil {
		return asAuthError(err, domain.AuthPasswordResetFailed, "Couldn't send a password reset email. Please try again.")
	}
	return nil
}

func (o *Orchestrator) SignOut(ctx context.Context) error {
	if err := o.backend.SignOut(ctx); err != nil {
		return asAuthError(err, domain.AuthSignOutFailed, "Couldn't sign out of your old account.")
	}
	return nil
}

// PerformMigration copies every record owned by the legacy session into
// target. It starts only from idle: a call while a run is in progress or
// after completion is a no-op, and a failed run must be resumed with Retry.
func (o *Orchestrator) PerformMigration(ctx context.Context, target domain.RecordWriter) error {
	proceed, err := o.begin(domain.MigrationIdle)
	if !proceed {
		return err
	}
	return o.run(ctx, target, msgConnecting)
}

// Retry re-drives a failed migration. Records already written are upserted
// again under the same keys, so nothing is duplicated.
func (o *Orchestrator) Retry(ctx context.Context, target domain.RecordWriter) error {
	proceed, err := o.begin(domain.MigrationFailed)
	if !proceed {
		return err
	}
	return o.run(ctx, target, msgReconnecting)
}

// begin claims the running flag when the status is in phase
func (o *Orchestrator) begin(phase domain.MigrationPhase) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running || o.status.Phase == domain.MigrationCompleted {
		return false, nil
	}
	if o.status.Phase != phase {
		return false, fmt.Errorf("%w: migration is %s", domain.ErrIllegalTransition, o.status.Phase)
	}
	o.running = true
	return true, nil
}

func (o *Orchestrator) run(ctx context.Context, target domain.RecordWriter, connecting string) error {
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if err := o.transition(domain.Preparing(connecting)); err != nil {
		return err
	}

	session, err := o.backend.CurrentSession(ctx)
	if err != nil {
		return o.fail(ctx, err)
	}
	if !session.Authenticated() {
		return o.fail(ctx, domain.NewAuthError(domain.AuthReauthenticationFailed,
			"Please sign in to your old account again.", domain.ErrNoLegacySession))
	}

	refs, err := o.backend.ListOwnedGroups(ctx, session)
	if err != nil {
		return o.fail(ctx, err)
	}

	o.logger.Info("migration started", "user", session.UserID, "groups", len(refs))
	if err := o.transition(domain.Running(msgCopying, 0)); err != nil {
		return err
	}

	total := float64(len(refs) + 1)
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, err)
		}

		group, err := o.backend.FetchGroup(ctx, session, ref)
		if err != nil {
			return o.fail(ctx, fmt.Errorf("fetch %s %s: %w", ref.Kind, ref.LegacyID, err))
		}

		for _, rec := range group.Records() {
			if rec.OwnerID == "" {
				rec.OwnerID = session.UserID
			}
			if err := target.Upsert(ctx, rec); err != nil {
				return o.fail(ctx, fmt.Errorf("write %s %s: %w", rec.Kind, rec.LegacyID, err))
			}
			o.metrics.RecordMigratedRecords(ctx, string(rec.Kind), 1)
		}

		msg := fmt.Sprintf("Copied %d of %d", i+1, len(refs))
		if err := o.transition(domain.Running(msg, float64(i+1)/total)); err != nil {
			return err
		}
	}

	if err := o.ledger.MarkMigrated(session.UserID); err != nil {
		return o.fail(ctx, fmt.Errorf("record migration: %w", err))
	}
	if err := o.backend.SignOut(ctx); err != nil {
		// The ledger already keeps this session from being migrated again
		o.logger.Warn("legacy sign out failed after migration", "error", err)
	}

	if err := o.transition(domain.Running(msgFinishing, 1)); err != nil {
		return err
	}
	if err := o.transition(domain.Completed()); err != nil {
		return err
	}

	o.metrics.RecordMigrationOutcome(ctx, true)
	o.logger.Info("migration completed", "user", session.UserID, "groups", len(refs))
	return nil
}

// fail moves to failed(reason) and returns err
func (o *Orchestrator) fail(ctx context.Context, err error) error {
	reason := err.Error()
	var authErr *domain.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		reason = authErr.Message
	}

	o.logger.Error("migration failed", "error", err)
	o.metrics.RecordMigrationOutcome(ctx, false)
	if terr := o.transition(domain.Failed(reason)); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

// transition validates next against the current status, then notifies
// observers outside the lock.
func (o *Orchestrator) transition(next domain.MigrationStatus) error {
	o.mu.Lock()
	status, err := o.status.Next(next)
	if err != nil {
		o.mu.Unlock()
		o.logger.Error("rejected migration transition", "error", err)
		return err
	}
	o.status = status
	observers := append([]domain.StatusObserver(nil), o.observers...)
	o.mu.Unlock()

	o.logger.Debug("migration status", "status", status.String())
	for _, fn := range observers {
		fn(status)
	}
	return nil
}

// asAuthError keeps an existing AuthError or wraps err as kind
func asAuthError(err error, kind domain.AuthErrorKind, message string) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return domain.NewAuthError(kind, message, err)
}
