package registry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Prometheus collectors, served on every registry host's /metrics.
var (
	bindingsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "calculator",
		Subsystem: "registry",
		Name:      "bindings",
		Help:      "Number of services currently bound in the registry.",
	}, []string{"registry"})

	callsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calculator",
		Subsystem: "registry",
		Name:      "calls_total",
		Help:      "Remote calls handled by the registry, by outcome.",
	}, []string{"registry", "binding", "operation", "outcome"})
)

// Call outcomes.
const (
	outcomeOK          = "ok"
	outcomeDomainError = "domain_error"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
)

// unknownLabel replaces a binding or operation label that did not resolve.
const unknownLabel = "unknown"

// errorCounter counts failed registry requests. It is a no-op until
// InitMetrics runs.
var errorCounter metric.Int64Counter = noop.Int64Counter{}

// InitMetrics registers the registry's OTel instruments. Call it after
// observability.InitMetrics.
func InitMetrics() error {
	errs, err := otel.Meter("registry").Int64Counter("registry.errors.total",
		metric.WithDescription("Total number of failed registry calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating registry error counter: %w", err)
	}
	errorCounter = errs
	return nil
}
