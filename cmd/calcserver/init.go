package main

import (
	"context"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/config"
	"remote-calculator/internal/observability"
	"remote-calculator/internal/registry"
)

// initTelemetry starts the OTLP pipelines when enabled and creates the
// calculator and registry instruments against whichever meter provider is global.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	shutdown := func(context.Context) error { return nil }

	if cfg.Telemetry.Enabled {
		observability.SetServiceName(cfg.Telemetry.ServiceName)
		if cfg.Telemetry.ServiceName == "" {
			observability.SetServiceName("calcserver")
		}

		var err error
		shutdown, err = observability.InitTelemetry(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, initMetrics := range []func() error{calculator.InitMetrics, registry.InitMetrics} {
		if err := initMetrics(); err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
	}

	return shutdown, nil
}
