package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"remote-calculator/internal/handlers"
	"remote-calculator/internal/observability"
	"remote-calculator/internal/registry"
)

// NewRouter builds the HTTP surface of one registry host.
func NewRouter(reg *registry.Registry) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)

	r.Get("/health", handlers.Health)

	r.Handle("/metrics", observability.PrometheusHandler())

	reg.Routes(r)

	return r
}
