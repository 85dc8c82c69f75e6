package observability

import (
	"context"
	"errors"
)

// InitTelemetry starts the OTLP trace, metric and log pipelines. The
// returned function shuts them down in reverse order.
func InitTelemetry(ctx context.Context) (func(context.Context) error, error) {
	var shutdowns []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	for _, start := range []func(context.Context) (func(context.Context) error, error){
		InitTracing,
		InitMetrics,
		InitLogging,
	} {
		fn, err := start(ctx)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx))
		}
		shutdowns = append(shutdowns, fn)
	}

	return shutdown, nil
}
