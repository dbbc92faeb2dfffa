// Package telemetry provides OpenTelemetry instrumentation for stork.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the name used for the stork meter
const MeterName = "github.com/mmcdole/stork"

// Metrics holds the OpenTelemetry instruments for convergence and migration
type Metrics struct {
	convergenceDuration metric.Float64Histogram
	migrationRecords    metric.Int64Counter
	migrationOutcomes   metric.Int64Counter
	stageTransitions    metric.Int64Counter
}

// NewMetrics creates the instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(MeterName)

	convergenceDuration, err := meter.Float64Histogram(
		"stork_convergence_duration_seconds",
		metric.WithDescription("Duration of convergence loops in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 8, 10, 20, 30),
	)
	if err != nil {
		return nil, err
	}

	migrationRecords, err := meter.Int64Counter(
		"stork_migration_records_total",
		metric.WithDescription("Records upserted by legacy migration"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	migrationOutcomes, err := meter.Int64Counter(
		"stork_migration_runs_total",
		metric.WithDescription("Finished migration runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	stageTransitions, err := meter.Int64Counter(
		"stork_stage_transitions_total",
		metric.WithDescription("App stage transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		convergenceDuration: convergenceDuration,
		migrationRecords:    migrationRecords,
		migrationOutcomes:   migrationOutcomes,
		stageTransitions:    stageTransitions,
	}, nil
}

// RecordConvergence records how long a convergence loop ran and how it ended
// ("found", "timeout" or "cancelled").
func (m *Metrics) RecordConvergence(ctx context.Context, duration time.Duration, outcome string) {
	if m == nil || m.convergenceDuration == nil {
		return
	}
	m.convergenceDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordMigratedRecords(ctx context.Context, kind string, n int) {
	if m == nil || m.migrationRecords == nil {
		return
	}
	m.migrationRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordMigrationOutcome(ctx context.Context, success bool) {
	if m == nil || m.migrationOutcomes == nil {
		return
	}
	m.migrationOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *Metrics) RecordStageTransition(ctx context.Context, from, to string) {
	if m == nil || m.stageTransitions == nil {
		return
	}
	m.stageTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
