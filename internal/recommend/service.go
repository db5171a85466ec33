// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package recommend implements the scoring pipeline: join one user's
// features against a variant's post table, score every unseen candidate
// with that variant's classifier in a single batched call, and return
// the top posts by predicted like probability.
package recommend

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/asmolin/feedrank/internal/bucketing"
	"github.com/asmolin/feedrank/internal/featurestore"
	"github.com/asmolin/feedrank/internal/metrics"
	"github.com/asmolin/feedrank/internal/models"
)

// Scorer scores a dense feature matrix, one probability per row.
// model.GBDT satisfies it; tests substitute stubs.
type Scorer interface {
	PredictProba(matrix [][]float64) ([]float64, error)
	NumFeatures() int
}

// VariantModel pairs one experiment variant's classifier with the post
// feature table it was trained on.
type VariantModel struct {
	Scorer Scorer
	Posts  featurestore.PostTable
}

// userFeatureCount is the number of per-user columns appended to every
// candidate row: gender, age, country, city, exp_group.
const userFeatureCount = 5

// temporalFeatureCount is the number of request-time columns: hour,
// weekday and month.
const temporalFeatureCount = 3

// Service answers recommendation requests from the in-memory feature
// tables. It is immutable after construction and safe for concurrent
// use.
type Service struct {
	store    *featurestore.Store
	variants map[bucketing.Variant]VariantModel
	logger   zerolog.Logger
}

// NewService builds a Service and checks that every variant's post
// table width matches what its classifier expects. A scorer reporting
// zero features leaves the width unchecked.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(store *featurestore.Store, variants map[bucketing.Variant]VariantModel, logger zerolog.Logger) (*Service, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("no variant models configured")
	}
	for variant, vm := range variants {
		if vm.Scorer == nil {
			return nil, fmt.Errorf("variant %s: no scorer", variant)
		}
		if len(vm.Posts.Posts) == 0 {
			return nil, fmt.Errorf("variant %s: empty post table", variant)
		}
		width := rowWidth(vm.Posts)
		if want := vm.Scorer.NumFeatures(); want > 0 && width != want {
			return nil, fmt.Errorf("variant %s: candidate rows have %d features, model expects %d",
				variant, width, want)
		}
	}
	return &Service{
		store:    store,
		variants: variants,
		logger:   logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// rowWidth is the feature-vector width produced for one candidate of
// the given post table.
func rowWidth(pt featurestore.PostTable) int {
	n := 0
	if len(pt.Posts) > 0 {
		n = len(pt.Posts[0].Features)
	}
	// topic code + user columns + temporal columns
	return n + 1 + userFeatureCount + temporalFeatureCount
}

// Recommend returns up to limit posts for the user, ranked by predicted
// like probability for the request timestamp. Posts the user already
// liked are never returned. Ties break on ascending post id, so equal
// scores still produce a stable order.
func (s *Service) Recommend(ctx context.Context, userID int, ts time.Time, variant bucketing.Variant, limit int) ([]models.PostGet, error) {
	start := time.Now()

	user, ok := s.store.User(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	vm, ok := s.variants[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariantNotConfigured, variant)
	}
	if limit <= 0 {
		return []models.PostGet{}, nil
	}

	liked := s.store.Liked(userID)
	candidates := make([]featurestore.Post, 0, len(vm.Posts.Posts))
	for _, post := range vm.Posts.Posts {
		if _, seen := liked[post.PostID]; !seen {
			candidates = append(candidates, post)
		}
	}
	if len(candidates) == 0 {
		return []models.PostGet{}, nil
	}

	matrix := make([][]float64, len(candidates))
	for i, post := range candidates {
		matrix[i] = featureRow(user, post, ts)
	}

	// Inference is CPU-bound and can take a while on large candidate
	// sets; bail out if the client is already gone.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predictStart := time.Now()
	scores, err := vm.Scorer.PredictProba(matrix)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	metrics.RecordModelPredict(variant.String(), time.Since(predictStart))
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("scorer returned %d scores for %d candidates", len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		return candidates[i].PostID < candidates[j].PostID
	})

	if limit > len(order) {
		limit = len(order)
	}
	result := make([]models.PostGet, limit)
	for i := 0; i < limit; i++ {
		post := candidates[order[i]]
		result[i] = models.PostGet{
			ID:    post.PostID,
			Text:  post.Text,
			Topic: post.Topic,
		}
	}

	metrics.RecordRecommendation(variant.String(), len(candidates), time.Since(start))
	s.logger.Debug().
		Int("user_id", userID).
		Str("variant", variant.String()).
		Int("candidates", len(candidates)).
		Int("returned", len(result)).
		Msg("recommendations scored")
	return result, nil
}

// Variants reports which experiment variants the service can score.
func (s *Service) Variants() []bucketing.Variant {
	out := make([]bucketing.Variant, 0, len(s.variants))
	for v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// featureRow assembles one candidate's feature vector: the post's
// numeric columns in table order, then its topic code, the user
// columns, and the request-time columns. The post text never enters
// the model.
func featureRow(user featurestore.User, post featurestore.Post, ts time.Time) []float64 {
	row := make([]float64, 0, len(post.Features)+1+userFeatureCount+temporalFeatureCount)
	row = append(row, post.Features...)
	row = append(row, categoryCode(post.Topic))
	row = append(row,
		float64(user.Gender),
		float64(user.Age),
		categoryCode(user.Country),
		categoryCode(user.City),
		float64(user.ExpGroup),
	)
	row = append(row,
		float64(ts.Hour()),
		float64(weekday(ts)),
		float64(int(ts.Month())),
	)
	return row
}

// weekday numbers days Monday=0 .. Sunday=6, matching the encoding the
// models were trained with.
func weekday(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

// categoryCode maps a categorical string onto a stable numeric code via
// FNV-1a. The exact mapping is pinned: retraining and serving must
// agree on it.
func categoryCode(s string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32())
}
