// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asmolin/feedrank/internal/config"
	"github.com/asmolin/feedrank/internal/models"
)

func routerConfig() *config.Config {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{
		RateLimitReqs:   100,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
	return cfg
}

func TestRouterRoutes(t *testing.T) {
	cfg := routerConfig()
	router := NewRouter(newTestHandler(&stubRecommender{posts: []models.PostGet{}}, cfg), cfg)

	get := func(t *testing.T, target string) *httptest.ResponseRecorder {
		t.Helper()
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	t.Run("recommendations with trailing slash", func(t *testing.T) {
		rr := get(t, "/post/recommendations/?id=200&time=2024-03-15T14:30:00")
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("recommendations without trailing slash", func(t *testing.T) {
		rr := get(t, "/post/recommendations?id=200&time=2024-03-15T14:30:00")
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("health probes", func(t *testing.T) {
		for _, target := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
			if rr := get(t, target); rr.Code != http.StatusOK {
				t.Errorf("%s status = %d", target, rr.Code)
			}
		}
	})

	t.Run("metrics scrape", func(t *testing.T) {
		rr := get(t, "/metrics")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "go_goroutines") {
			t.Error("metrics output missing runtime collectors")
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		if rr := get(t, "/nope"); rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("request id header set", func(t *testing.T) {
		rr := get(t, "/api/v1/health/live")
		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
	})
}

func TestRouterMethodNotAllowed(t *testing.T) {
	cfg := routerConfig()
	router := NewRouter(newTestHandler(&stubRecommender{}, cfg), cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/post/recommendations/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}
