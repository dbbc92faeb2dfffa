// Package probe answers "is there already data on this device?" cheaply
// enough to be asked on every convergence tick.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/log"
)

// Probe checks the local store for existing user data.
type Probe struct {
	store  domain.Store
	logger *slog.Logger

	// Primary kinds whose presence means the user has data
	primary []domain.Kind
	// Kind reported as RecordCount
	counted domain.Kind

	mu     sync.RWMutex
	result domain.ConvergenceResult
}

// New creates a probe over store. Presence of a profile or a delivery counts
// as existing data; deliveries are counted.
func New(store domain.Store, logger *slog.Logger) *Probe {
	return &Probe{
		store:   store,
		logger:  log.OrDefault(logger),
		primary: []domain.Kind{domain.KindProfile, domain.KindDelivery},
		counted: domain.KindDelivery,
	}
}

// Refresh re-reads the store, bypassing its read cache, and replaces the
// snapshot. On a read error the snapshot becomes not-found.
func (p *Probe) Refresh(ctx context.Context) (domain.ConvergenceResult, error) {
	p.store.Refresh()

	result, err := p.check(ctx)
	if err != nil {
		result = domain.ConvergenceResult{}
	}

	p.mu.Lock()
	p.result = result
	p.mu.Unlock()

	if err != nil {
		return result, err
	}
	p.logger.Debug("probe refreshed", "found", result.Found, "count", result.RecordCount)
	return result, nil
}

func (p *Probe) check(ctx context.Context) (domain.ConvergenceResult, error) {
	var result domain.ConvergenceResult
	for _, kind := range p.primary {
		ok, err := p.store.Exists(ctx, kind)
		if err != nil {
			return result, fmt.Errorf("probe %s: %w", kind, err)
		}
		if ok {
			result.Found = true
			break
		}
	}
	if !result.Found {
		return result, nil
	}

	n, err := p.store.Count(ctx, p.counted)
	if err != nil {
		return domain.ConvergenceResult{}, fmt.Errorf("probe count %s: %w", p.counted, err)
	}
	result.RecordCount = n
	return result, nil
}

// HasExistingData reports the outcome of the most recent Refresh
func (p *Probe) HasExistingData() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result.Found
}

// Result returns the snapshot from the most recent Refresh
func (p *Probe) Result() domain.ConvergenceResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}
