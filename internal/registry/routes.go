package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/handlers"
	"remote-calculator/internal/observability"
	"remote-calculator/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("registry")

// Routes mounts the registry's remote call surface under /registry.
func (r *Registry) Routes(router chi.Router) {
	router.Route(transport.RegistryPath, func(rt chi.Router) {
		rt.Get("/", r.handleList)
		rt.Get("/{name}", r.handleDescribe)
		rt.Post("/{name}/{op}", r.handleCall)
	})
}

// handleList handles GET /registry
func (r *Registry) handleList(w http.ResponseWriter, req *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, transport.BindingList{Bindings: r.List()})
}

// handleDescribe handles GET /registry/{name}. Clients use it as lookup.
func (r *Registry) handleDescribe(w http.ResponseWriter, req *http.Request) {
	name := urlParam(req, "name")

	exp, err := r.Lookup(name)
	if err != nil {
		handlers.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if !exp.Exported() {
		handlers.WriteError(w, http.StatusServiceUnavailable, ErrUnexported.Error())
		return
	}

	ops := make([]string, 0, len(exp.Operations()))
	for _, op := range exp.Operations() {
		ops = append(ops, string(op))
	}
	handlers.WriteJSON(w, http.StatusOK, transport.Binding{Name: name, Operations: ops, Endpoint: exp.Endpoint()})
}

// handleCall handles POST /registry/{name}/{op}. Each request runs on its
// own goroutine; the bound services are stateless so no locking is held
// across the call.
func (r *Registry) handleCall(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := observability.WithTrace(ctx, r.logger)
	requestID := observability.RequestIDFromContext(ctx)
	name := urlParam(req, "name")
	opName := urlParam(req, "op")

	ctx, span := tracer.Start(ctx, "registry.call",
		trace.WithAttributes(
			attribute.String("registry.binding", name),
			attribute.String("registry.operation", opName),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	// Labels stay fixed until the operation and binding are known, so
	// arbitrary request paths cannot create new series.
	nameLabel, opLabel := unknownLabel, unknownLabel
	fail := func(status int, outcome string, err error, body transport.ErrorResponse) {
		callsCounter.WithLabelValues(r.label, nameLabel, opLabel, outcome).Inc()
		observability.RecordError(ctx, span, logger, errorCounter, opLabel, err, status, w, body)
	}

	op, err := calculator.ParseOp(opName)
	if err != nil {
		fail(http.StatusNotFound, outcomeRejected, err, transport.ErrorResponse{Error: err.Error()})
		return
	}
	opLabel = string(op)

	exp, err := r.Lookup(name)
	if err != nil {
		fail(http.StatusNotFound, outcomeRejected, err, transport.ErrorResponse{Error: err.Error()})
		return
	}
	nameLabel = name
	if !exp.Supports(op) {
		err := fmt.Errorf("%s: %w", op, calculator.ErrUnsupported)
		fail(http.StatusNotFound, outcomeRejected, err, transport.ErrorResponse{Error: err.Error()})
		return
	}

	var body transport.CallRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		fail(http.StatusBadRequest, outcomeRejected, err, transport.ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(body.Operands) != op.Arity() {
		err := fmt.Errorf("%s takes %d operand(s), got %d", op, op.Arity(), len(body.Operands))
		fail(http.StatusBadRequest, outcomeRejected, err, transport.ErrorResponse{Error: err.Error()})
		return
	}

	operands := transport.Floats(body.Operands)
	result, err := exp.invoke(ctx, op, body.ClientID, operands)
	switch {
	case errors.Is(err, ErrUnexported):
		fail(http.StatusServiceUnavailable, outcomeUnavailable, err, transport.ErrorResponse{Error: err.Error()})
		return
	case calculator.ErrorKind(err) != "":
		fail(http.StatusUnprocessableEntity, outcomeDomainError, err, transport.ErrorResponse{
			Error:    calculator.ErrorForKind(calculator.ErrorKind(err)).Error(),
			Kind:     calculator.ErrorKind(err),
			Operands: body.Operands,
		})
		return
	case err != nil:
		fail(http.StatusInternalServerError, outcomeRejected, err, transport.ErrorResponse{Error: err.Error()})
		return
	}

	callsCounter.WithLabelValues(r.label, nameLabel, opLabel, outcomeOK).Inc()
	span.SetAttributes(attribute.Float64("calculator.result", result))
	span.SetStatus(codes.Ok, "")

	logger.Debug("registry call served",
		zap.String("binding", name),
		zap.String("operation", opName),
		zap.String("client_id", body.ClientID),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusOK, transport.CallResponse{
		Operation: string(op),
		Operands:  body.Operands,
		Result:    transport.Number(result),
	})
}

func urlParam(req *http.Request, key string) string {
	raw := chi.URLParam(req, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
