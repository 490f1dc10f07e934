// Package transporthttp assembles the HTTP surface: middleware chain, audit
// routes, health and metrics endpoints.
package transporthttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caretrail/internal/audit/handler"
	auditmw "caretrail/internal/audit/middleware"
	"caretrail/internal/platform/middleware"
)

type RouterConfig struct {
	Logger    *slog.Logger
	Validator middleware.JWTValidator
	Audit     *handler.Handler

	// Recorder is optional; nil disables request-level audit emission.
	Recorder *auditmw.Recorder
}

// NewRouter builds the full middleware chain. Order matters: recovery wraps
// everything, request ID and clock are pinned before anything logs or
// records, and auth runs before the audit routes and the recorder consult
// tenant scope.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		if cfg.Recorder != nil {
			r.Use(cfg.Recorder.Middleware)
		}
		cfg.Audit.Register(r)
	})

	return r
}
