// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asmolin/feedrank/internal/config"
	"github.com/asmolin/feedrank/internal/middleware"
)

// NewRouter assembles the HTTP router: recovery, request IDs, CORS,
// per-IP rate limiting and Prometheus instrumentation around the
// application endpoints.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	if !cfg.Security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
	}

	r.Use(middleware.PrometheusMetrics)

	// Both spellings serve the endpoint; clients historically call the
	// trailing-slash form.
	r.Get("/post/recommendations/", h.GetRecommendations)
	r.Get("/post/recommendations", h.GetRecommendations)

	r.Get("/api/v1/health/live", h.HandleLiveness)
	r.Get("/api/v1/health/ready", h.HandleReadiness)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
