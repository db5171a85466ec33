// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package metrics defines Prometheus instrumentation for the service:
// API latency and throughput, recommendation pipeline timing, model
// inference timing and the one-time startup bulk loads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Recommendation pipeline metrics
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_pipeline_duration_seconds",
			Help:    "End-to-end scoring pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	RecommendCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates",
			Help:    "Number of candidate posts scored per request",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 .. ~160k
		},
		[]string{"variant"},
	)

	ModelPredictDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_predict_duration_seconds",
			Help:    "Batched model inference duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	// Startup load metrics
	StartupLoadRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "startup_load_rows",
			Help: "Rows loaded from the feature store at startup",
		},
		[]string{"table"},
	)

	StartupLoadDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "startup_load_duration_seconds",
			Help: "Duration of the startup bulk load per table",
		},
		[]string{"table"},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records one scoring pipeline run.
func RecordRecommendation(variant string, candidates int, duration time.Duration) {
	RecommendDuration.WithLabelValues(variant).Observe(duration.Seconds())
	RecommendCandidates.WithLabelValues(variant).Observe(float64(candidates))
}

// RecordModelPredict records one batched model inference call.
func RecordModelPredict(variant string, duration time.Duration) {
	ModelPredictDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// RecordStartupLoad records a completed startup bulk load.
func RecordStartupLoad(table string, rows int, duration time.Duration) {
	StartupLoadRows.WithLabelValues(table).Set(float64(rows))
	StartupLoadDuration.WithLabelValues(table).Set(duration.Seconds())
}
