package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger = zap.NewNop()

func InitLogger() error {
	var err error

	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	return nil
}

func SyncLogger() {
	_ = Logger.Sync()
}

// NewLogger builds a JSON logger writing to w. The sink is wrapped in
// zapcore.Lock so concurrent callers never interleave partial lines.
func NewLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core)
}

// LoggerWithTrace returns a child of the process Logger enriched with the
// active span's identifiers. See WithTrace.
func LoggerWithTrace(ctx context.Context) *zap.Logger {
	return WithTrace(ctx, Logger)
}

// WithTrace returns a child logger enriched with trace_id and span_id
// fields from the active OTel span in ctx.
//
// It also embeds ctx itself as a zap.Any("context", ctx) field. The otelzap
// bridge detects any field whose value implements context.Context and uses
// it when emitting the OTLP log record, which populates the native TraceID
// and SpanID so logs and traces correlate in the backend. Without it the
// bridge emits with context.Background() and the IDs are all zeros.
//
// The plain trace_id / span_id string fields keep stdout JSON logs greppable.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	span := trace.SpanContextFromContext(ctx)

	if !span.IsValid() {
		return logger
	}

	return logger.With(
		zap.Any("context", ctx),
		zap.String("trace_id", span.TraceID().String()),
		zap.String("span_id", span.SpanID().String()),
	)
}
