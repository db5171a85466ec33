// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/asmolin/feedrank/internal/bucketing"
	"github.com/asmolin/feedrank/internal/config"
	"github.com/asmolin/feedrank/internal/logging"
	"github.com/asmolin/feedrank/internal/models"
	"github.com/asmolin/feedrank/internal/recommend"
)

// stubRecommender records the last call and returns canned results.
type stubRecommender struct {
	posts   []models.PostGet
	err     error
	userID  int
	ts      time.Time
	variant bucketing.Variant
	limit   int
}

func (s *stubRecommender) Recommend(_ context.Context, userID int, ts time.Time, variant bucketing.Variant, limit int) ([]models.PostGet, error) {
	s.userID, s.ts, s.variant, s.limit = userID, ts, variant, limit
	if s.err != nil {
		return nil, s.err
	}
	return s.posts, nil
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{DefaultLimit: 5, MaxLimit: 200},
	}
}

func abConfig() *config.Config {
	cfg := testConfig()
	cfg.Experiment = config.ExperimentConfig{Enabled: true, Salt: "salty", Groups: 2}
	return cfg
}

func newTestHandler(rec Recommender, cfg *config.Config) *Handler {
	return NewHandler(rec, cfg, logging.NewTestLogger(io.Discard))
}

func doRequest(h *Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.GetRecommendations(rr, req)
	return rr
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body.Detail
}

func TestGetRecommendationsSingleMode(t *testing.T) {
	posts := []models.PostGet{
		{ID: 1, Text: "a", Topic: "tech"},
		{ID: 2, Text: "b", Topic: "covid"},
	}

	t.Run("returns a bare array", func(t *testing.T) {
		stub := &stubRecommender{posts: posts}
		rr := doRequest(newTestHandler(stub, testConfig()),
			"/post/recommendations/?id=200&time=2024-03-15T14:30:00&limit=2")

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		var got []models.PostGet
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
		}
		if len(got) != 2 || got[0].ID != 1 {
			t.Errorf("body = %+v", got)
		}
		if stub.userID != 200 || stub.limit != 2 {
			t.Errorf("recommender called with user %d limit %d", stub.userID, stub.limit)
		}
		if stub.variant != bucketing.Control {
			t.Errorf("variant = %s, want control", stub.variant)
		}
	})

	t.Run("missing limit uses the default", func(t *testing.T) {
		stub := &stubRecommender{posts: posts}
		doRequest(newTestHandler(stub, testConfig()),
			"/post/recommendations/?id=200&time=2024-03-15T14:30:00")
		if stub.limit != 5 {
			t.Errorf("limit = %d, want default 5", stub.limit)
		}
	})

	t.Run("timestamp is parsed", func(t *testing.T) {
		stub := &stubRecommender{posts: posts}
		doRequest(newTestHandler(stub, testConfig()),
			"/post/recommendations/?id=200&time=2024-03-15T14:30:00")
		want := time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)
		if !stub.ts.Equal(want) {
			t.Errorf("ts = %s, want %s", stub.ts, want)
		}
	})
}

func TestGetRecommendationsValidation(t *testing.T) {
	cases := []struct {
		name   string
		target string
		detail string
	}{
		{"missing id", "/post/recommendations/?time=2024-03-15T14:30:00", "id is required"},
		{"non-integer id", "/post/recommendations/?id=abc&time=2024-03-15T14:30:00", "id must be an integer"},
		{"missing time", "/post/recommendations/?id=200", "time is required"},
		{"bad time", "/post/recommendations/?id=200&time=yesterday", "time must be an ISO 8601 timestamp"},
		{"non-integer limit", "/post/recommendations/?id=200&time=2024-03-15T14:30:00&limit=many", "limit must be an integer"},
		{"limit over cap", "/post/recommendations/?id=200&time=2024-03-15T14:30:00&limit=500", "limit must be at most 200"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(newTestHandler(&stubRecommender{}, testConfig()), tc.target)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rr.Code)
			}
			if got := decodeDetail(t, rr); got != tc.detail {
				t.Errorf("detail = %q, want %q", got, tc.detail)
			}
		})
	}

	t.Run("negative limit", func(t *testing.T) {
		rr := doRequest(newTestHandler(&stubRecommender{}, testConfig()),
			"/post/recommendations/?id=200&time=2024-03-15T14:30:00&limit=-1")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
	})

	t.Run("zero id", func(t *testing.T) {
		rr := doRequest(newTestHandler(&stubRecommender{}, testConfig()),
			"/post/recommendations/?id=0&time=2024-03-15T14:30:00")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
	})
}

func TestGetRecommendationsErrors(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		stub := &stubRecommender{err: recommend.ErrUserNotFound}
		rr := doRequest(newTestHandler(stub, testConfig()),
			"/post/recommendations/?id=999999&time=2024-03-15T14:30:00")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
		if got := decodeDetail(t, rr); got != "user id not found" {
			t.Errorf("detail = %q", got)
		}
	})

	t.Run("pipeline failure", func(t *testing.T) {
		stub := &stubRecommender{err: errors.New("scorer exploded")}
		rr := doRequest(newTestHandler(stub, testConfig()),
			"/post/recommendations/?id=200&time=2024-03-15T14:30:00")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rr.Code)
		}
		if got := decodeDetail(t, rr); got != "internal server error" {
			t.Errorf("detail = %q, internals must not leak", got)
		}
	})
}

func TestGetRecommendationsABMode(t *testing.T) {
	t.Run("buckets and wraps the response", func(t *testing.T) {
		stub := &stubRecommender{posts: []models.PostGet{{ID: 1}}}
		// User 2 with salt "salty" lands in control.
		rr := doRequest(newTestHandler(stub, abConfig()),
			"/post/recommendations/?id=2&time=2024-03-15T14:30:00")

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		var body models.ABResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
		}
		if body.ExpGroup != "control" {
			t.Errorf("exp_group = %q, want control", body.ExpGroup)
		}
		if stub.variant != bucketing.Control {
			t.Errorf("variant = %s, want control", stub.variant)
		}
		if len(body.Recommendations) != 1 {
			t.Errorf("recommendations = %+v", body.Recommendations)
		}
	})

	t.Run("test bucket", func(t *testing.T) {
		stub := &stubRecommender{posts: []models.PostGet{}}
		// User 1 with salt "salty" lands in test.
		doRequest(newTestHandler(stub, abConfig()),
			"/post/recommendations/?id=1&time=2024-03-15T14:30:00")
		if stub.variant != bucketing.Test {
			t.Errorf("variant = %s, want test", stub.variant)
		}
	})

	t.Run("explicit exp_group override", func(t *testing.T) {
		stub := &stubRecommender{posts: []models.PostGet{}}
		// User 2 hashes to control, override forces test.
		doRequest(newTestHandler(stub, abConfig()),
			"/post/recommendations/?id=2&time=2024-03-15T14:30:00&exp_group=test")
		if stub.variant != bucketing.Test {
			t.Errorf("variant = %s, want test override", stub.variant)
		}
	})

	t.Run("invalid exp_group", func(t *testing.T) {
		rr := doRequest(newTestHandler(&stubRecommender{}, abConfig()),
			"/post/recommendations/?id=2&time=2024-03-15T14:30:00&exp_group=holdout")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(&stubRecommender{}, testConfig())

	t.Run("liveness", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleLiveness(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("readiness", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("readiness without recommender", func(t *testing.T) {
		bare := newTestHandler(nil, testConfig())
		rr := httptest.NewRecorder()
		bare.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rr.Code)
		}
	})
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-15T14:30:00Z", time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)},
		{"2024-03-15T14:30:00", time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)},
		{"2024-03-15 14:30:00", time.Date(2024, time.March, 15, 14, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseTime(tc.raw)
		if err != nil {
			t.Errorf("parseTime(%q) error: %v", tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("parseTime(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}

	if _, err := parseTime("15/03/2024"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
