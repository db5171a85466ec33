// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package api exposes the recommendation pipeline over HTTP: the
// recommendations endpoint, health probes and the Prometheus scrape
// endpoint, wired through a chi router.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/asmolin/feedrank/internal/bucketing"
	"github.com/asmolin/feedrank/internal/config"
	"github.com/asmolin/feedrank/internal/models"
	"github.com/asmolin/feedrank/internal/recommend"
	"github.com/asmolin/feedrank/internal/validation"
)

// Recommender is the part of the recommendation service the handlers
// depend on.
type Recommender interface {
	Recommend(ctx context.Context, userID int, ts time.Time, variant bucketing.Variant, limit int) ([]models.PostGet, error)
}

// Handler holds the HTTP handlers' dependencies.
type Handler struct {
	recommender Recommender
	cfg         *config.Config
	logger      zerolog.Logger
}

// NewHandler creates a Handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(recommender Recommender, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		recommender: recommender,
		cfg:         cfg,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// recommendationParams are the validated query parameters of the
// recommendations endpoint. Limit bounds come from configuration and
// are checked separately.
type recommendationParams struct {
	UserID int `validate:"required,gt=0"`
	Limit  int `validate:"gte=0"`
}

// GetRecommendations serves GET /post/recommendations/.
//
// In single-model mode the body is a bare JSON array of posts. In A/B
// mode the user is bucketed into an experiment variant and the body
// carries the resolved group next to the list.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok, err := queryInt(r, "id")
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !ok {
		respondDetail(w, http.StatusUnprocessableEntity, "id is required")
		return
	}

	rawTime := r.URL.Query().Get("time")
	if rawTime == "" {
		respondDetail(w, http.StatusUnprocessableEntity, "time is required")
		return
	}
	ts, err := parseTime(rawTime)
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	limit, ok, err := queryInt(r, "limit")
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !ok {
		limit = h.cfg.API.DefaultLimit
	}

	params := recommendationParams{UserID: userID, Limit: limit}
	if verr := validation.ValidateStruct(&params); verr != nil {
		respondDetail(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if limit > h.cfg.API.MaxLimit {
		respondDetail(w, http.StatusUnprocessableEntity,
			"limit must be at most "+strconv.Itoa(h.cfg.API.MaxLimit))
		return
	}

	if !h.cfg.Experiment.Enabled {
		posts, err := h.recommender.Recommend(r.Context(), userID, ts, bucketing.Control, limit)
		if err != nil {
			h.respondRecommendError(w, r, userID, err)
			return
		}
		respondJSON(w, http.StatusOK, posts)
		return
	}

	variant, err := h.resolveVariant(r, userID)
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	posts, err := h.recommender.Recommend(r.Context(), userID, ts, variant, limit)
	if err != nil {
		h.respondRecommendError(w, r, userID, err)
		return
	}
	respondJSON(w, http.StatusOK, models.ABResponse{
		ExpGroup:        variant.String(),
		Recommendations: posts,
	})
}

// resolveVariant buckets the user, honoring an explicit exp_group
// override from trusted callers (load tests, debugging).
func (h *Handler) resolveVariant(r *http.Request, userID int) (bucketing.Variant, error) {
	if raw := r.URL.Query().Get("exp_group"); raw != "" {
		variant, ok := bucketing.ParseVariant(raw)
		if !ok {
			return 0, errors.New("exp_group must be one of: control, test")
		}
		return variant, nil
	}
	return bucketing.Assign(userID, h.cfg.Experiment.Salt, h.cfg.Experiment.Groups)
}

// respondRecommendError maps pipeline errors onto HTTP responses. Only
// the unknown-user case is client-visible detail; everything else is a
// logged 500.
func (h *Handler) respondRecommendError(w http.ResponseWriter, r *http.Request, userID int, err error) {
	if errors.Is(err, recommend.ErrUserNotFound) {
		respondDetail(w, http.StatusNotFound, "user id not found")
		return
	}
	h.logger.Error().
		Err(err).
		Int("user_id", userID).
		Str("path", r.URL.Path).
		Msg("recommendation failed")
	respondDetail(w, http.StatusInternalServerError, "internal server error")
}

// HandleLiveness serves GET /api/v1/health/live. The process is alive
// if it can answer at all.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness serves GET /api/v1/health/ready. All feature tables
// and models load before the listener starts, so a serving process is
// ready by construction; the probe still guards against a nil wiring
// bug.
func (h *Handler) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	if h.recommender == nil {
		respondDetail(w, http.StatusServiceUnavailable, "service not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
