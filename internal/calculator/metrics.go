package calculator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric instruments. They start as no-ops so services work before
// InitMetrics runs (tests, telemetry disabled).
var (
	opsCounter   metric.Int64Counter     = noop.Int64Counter{}
	opsHistogram metric.Float64Histogram = noop.Float64Histogram{}
	errorCounter metric.Int64Counter     = noop.Int64Counter{}
	resultGauge  metric.Float64Gauge     = noop.Float64Gauge{}
)

// InitMetrics registers the calculator's OTel metric instruments.
// Call this once at startup (after observability.InitMetrics).
func InitMetrics() error {
	meter := otel.Meter("calculator")

	ops, err := meter.Int64Counter("calculator.operations.total",
		metric.WithDescription("Total number of calculator operations performed"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return fmt.Errorf("creating ops counter: %w", err)
	}

	hist, err := meter.Float64Histogram("calculator.operation.duration",
		metric.WithDescription("Duration of calculator operations in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("creating ops histogram: %w", err)
	}

	errs, err := meter.Int64Counter("calculator.errors.total",
		metric.WithDescription("Total number of calculator domain errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	gauge, err := meter.Float64Gauge("calculator.last_result",
		metric.WithDescription("The result of the last calculator operation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating result gauge: %w", err)
	}

	opsCounter, opsHistogram, errorCounter, resultGauge = ops, hist, errs, gauge
	return nil
}
