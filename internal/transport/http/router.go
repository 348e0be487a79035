// Package httptransport assembles the HTTP surface: middleware chain, admin
// API, health, and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canon/internal/admin/handler"
	"canon/internal/platform/middleware"
)

// HealthChecker reports backend connectivity for the readiness endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries everything the router needs to assemble routes.
// AdminTokenHash is the bcrypt hash of the admin token, not the plaintext.
type RouterConfig struct {
	Admin          *handler.Handler
	Validator      middleware.TokenValidator
	AdminTokenHash string
	Logger         *slog.Logger
	Health         []HealthChecker
}

// NewRouter wires the middleware chain and mounts all endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestMetadata)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", handleHealthz(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		if cfg.AdminTokenHash != "" {
			r.Use(middleware.RequireAdminToken(cfg.AdminTokenHash, cfg.Logger))
		}
		cfg.Admin.Register(r)
	})

	return r
}

func handleHealthz(checkers []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checkers {
			if c == nil {
				continue
			}
			if err := c.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
