package observability

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogging exports log records over OTLP in addition to the existing
// Logger output.
func InitLogging(ctx context.Context) (func(context.Context) error, error) {

	exporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exporter),
		),
	)

	otelCore := otelzap.NewCore(ServiceName(), otelzap.WithLoggerProvider(provider))

	// Tee the existing stdout logger core with the OTel core so logs
	// go to both stdout and the OTLP endpoint.
	Logger = zap.New(zapcore.NewTee(Logger.Core(), otelCore))

	return provider.Shutdown, nil
}
