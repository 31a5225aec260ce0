package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sgweather/sgweather/internal/weather"
)

const meterName = "github.com/sgweather/sgweather/internal/coordinator"

// cycleMetrics holds the OpenTelemetry instruments for refresh cycles.
type cycleMetrics struct {
	cycleDuration metric.Float64Histogram
	cycleTotal    metric.Int64Counter
	fetchTotal    metric.Int64Counter
}

func newCycleMetrics() (*cycleMetrics, error) {
	meter := otel.Meter(meterName)

	cycleDuration, err := meter.Float64Histogram(
		"weather.refresh.cycle.duration",
		metric.WithDescription("Duration of refresh cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cycleTotal, err := meter.Int64Counter(
		"weather.refresh.cycle.total",
		metric.WithDescription("Total number of refresh cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"weather.refresh.fetch.total",
		metric.WithDescription("Total number of source fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	return &cycleMetrics{
		cycleDuration: cycleDuration,
		cycleTotal:    cycleTotal,
		fetchTotal:    fetchTotal,
	}, nil
}

func (m *cycleMetrics) recordCycle(ctx context.Context, d time.Duration, committed bool) {
	attrs := metric.WithAttributes(attribute.Bool("committed", committed))
	m.cycleDuration.Record(ctx, d.Seconds(), attrs)
	m.cycleTotal.Add(ctx, 1, attrs)
}

func (m *cycleMetrics) recordFetch(ctx context.Context, src weather.Source, ok bool) {
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(src)),
		attribute.Bool("success", ok),
	))
}
