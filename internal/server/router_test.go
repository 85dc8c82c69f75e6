package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/observability"
	"remote-calculator/internal/registry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(zap.NewNop(), "router-test")
	exp, err := registry.Export(calculator.NewCombined(zap.NewNop()), "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := reg.Bind("CalculatorService", exp); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return reg
}

func TestNewRouterHealthEndpoint(t *testing.T) {
	router := NewRouter(newTestRegistry(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	if body := w.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestNewRouterCallSetsHeaderAndOmitsRequestIDInBody(t *testing.T) {
	observability.Logger = zap.NewNop()
	if err := calculator.InitMetrics(); err != nil {
		t.Fatalf("initializing calculator metrics: %v", err)
	}

	router := NewRouter(newTestRegistry(t))
	body := []byte(`{"operands":[2,3],"client_id":"alice 10.0.0.2"}`)
	req := httptest.NewRequest(http.MethodPost, "/registry/CalculatorService/add", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	requestID := w.Result().Header.Get(observability.RequestIDHeader)
	if requestID == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		t.Fatalf("expected valid UUID in X-Request-ID, got %q: %v", requestID, err)
	}

	var payload map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&payload); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}

	if _, ok := payload["request_id"]; ok {
		t.Fatal("did not expect request_id field in success JSON body")
	}

	if got, ok := payload["result"].(float64); !ok || got != 5 {
		t.Fatalf("expected result 5, got %#v", payload["result"])
	}
}

func TestNewRouterDomainErrorKeepsRequestIDOutOfBody(t *testing.T) {
	router := NewRouter(newTestRegistry(t))
	req := httptest.NewRequest(http.MethodPost, "/registry/CalculatorService/sqrt", bytes.NewReader([]byte(`{"operands":[-1]}`)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	if w.Result().Header.Get(observability.RequestIDHeader) == "" {
		t.Fatal("expected X-Request-ID header on error response")
	}

	var payload map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&payload); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}
	if _, ok := payload["request_id"]; ok {
		t.Fatal("did not expect request_id field in error JSON body")
	}
	if payload["kind"] != calculator.KindNegativeRadicand {
		t.Fatalf("expected kind %q, got %#v", calculator.KindNegativeRadicand, payload["kind"])
	}
}
