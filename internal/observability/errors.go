package observability

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RecordError centralises error handling on the transport: records the
// error on the span, increments the provided error counter, logs with trace
// context, and writes body as the JSON error response. The request ID
// travels in the X-Request-ID header, not the body.
func RecordError(ctx context.Context, span trace.Span, logger *zap.Logger, counter metric.Int64Counter, opName string, err error, status int, w http.ResponseWriter, body any) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", opName)))

	logger.Error("request failed",
		zap.String("operation", opName),
		zap.Int("status", status),
		zap.Error(err),
		zap.String("request_id", RequestIDFromContext(ctx)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
