package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an in-process meter provider read on demand. stork has no
// collector to push to, so the summary goes to the log at shutdown.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// NewProvider creates the meter provider and installs it as the global one
func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return &Provider{mp: mp, reader: reader}
}

// MeterProvider returns the provider, nil when p is nil
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p == nil {
		return nil
	}
	return p.mp
}

// Summary collects current values as metric name -> data point count
func (p *Provider) Summary(ctx context.Context) (map[string]int, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	out := make(map[string]int)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int(dp.Count)
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int(dp.Value)
				}
			}
		}
	}
	return out, nil
}

// Shutdown logs the summary and releases the provider
func (p *Provider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	if p == nil {
		return nil
	}
	if summary, err := p.Summary(ctx); err != nil {
		logger.Warn("metrics summary failed", "error", err)
	} else if len(summary) > 0 {
		attrs := make([]any, 0, 2*len(summary))
		for name, v := range summary {
			attrs = append(attrs, name, v)
		}
		logger.Info("metrics", attrs...)
	}
	return p.mp.Shutdown(ctx)
}
