// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package main is the entry point for the Feedrank server.
//
// Feedrank serves personalized post recommendations: given a user id and
// a request timestamp it ranks the posts the user has not yet liked by
// the predicted probability of a like, using a pretrained gradient-
// boosted classifier over precomputed user and post features.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional YAML file (Koanf v2)
//  2. Logging: global zerolog logger
//  3. Feature store: chunked bulk load of user, interaction and post
//     feature tables from Postgres into memory
//  4. Models: one classifier in single-model mode, or one per experiment
//     variant in A/B mode
//  5. HTTP server: chi router with health probes and Prometheus metrics
//
// Every startup failure is fatal: the process never serves traffic with
// a partial feature store or a missing model artifact.
//
// # Operating Modes
//
// Single-model mode (default) scores all users with one model and
// returns a bare JSON array. A/B mode (AB_ENABLED=true) deterministically
// buckets each user into the control or test variant by salted MD5 and
// scores with that variant's model over that variant's post table.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops
// accepting connections and in-flight requests get 10 seconds to drain.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/asmolin/feedrank/internal/api"
	"github.com/asmolin/feedrank/internal/bucketing"
	"github.com/asmolin/feedrank/internal/config"
	"github.com/asmolin/feedrank/internal/featurestore"
	"github.com/asmolin/feedrank/internal/logging"
	"github.com/asmolin/feedrank/internal/model"
	"github.com/asmolin/feedrank/internal/recommend"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuration invalid")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Bool("ab_enabled", cfg.Experiment.Enabled).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("feedrank starting")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}

	handler := api.NewHandler(svc, cfg, logging.Logger())
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info().Msg("stopped")
	return nil
}

// buildService loads every feature table and model artifact and wires
// the recommendation service.
func buildService(ctx context.Context, cfg *config.Config) (*recommend.Service, error) {
	db, err := featurestore.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	loader := featurestore.NewLoader(db, cfg.Database.ChunkSize, logging.Logger())

	users, err := loader.Users(ctx, cfg.Features.UserTable)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	likes, err := loader.Likes(ctx, cfg.Features.LikesTable)
	if err != nil {
		return nil, fmt.Errorf("load likes: %w", err)
	}
	store := featurestore.NewStore(users, likes)

	variants, err := buildVariants(ctx, cfg, loader)
	if err != nil {
		return nil, err
	}

	return recommend.NewService(store, variants, logging.Logger())
}

// buildVariants loads the per-variant models and post tables. Single-
// model mode runs every request through the control slot.
func buildVariants(ctx context.Context, cfg *config.Config, loader *featurestore.Loader) (map[bucketing.Variant]recommend.VariantModel, error) {
	if !cfg.Experiment.Enabled {
		vm, err := loadVariant(ctx, loader, cfg.ModelPath(), cfg.Features.PostTable)
		if err != nil {
			return nil, err
		}
		return map[bucketing.Variant]recommend.VariantModel{bucketing.Control: vm}, nil
	}

	variants := make(map[bucketing.Variant]recommend.VariantModel, 2)
	for _, v := range []bucketing.Variant{bucketing.Control, bucketing.Test} {
		vm, err := loadVariant(ctx, loader, cfg.VariantModelPath(v.String()), cfg.VariantPostTable(v.String()))
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v, err)
		}
		variants[v] = vm
	}
	return variants, nil
}

func loadVariant(ctx context.Context, loader *featurestore.Loader, modelPath, postTable string) (recommend.VariantModel, error) {
	classifier, err := model.Load(modelPath)
	if err != nil {
		return recommend.VariantModel{}, err
	}
	posts, err := loader.Posts(ctx, postTable)
	if err != nil {
		return recommend.VariantModel{}, fmt.Errorf("load posts: %w", err)
	}
	logging.Info().
		Str("model", modelPath).
		Str("post_table", postTable).
		Int("model_features", classifier.NumFeatures()).
		Msg("variant ready")
	return recommend.VariantModel{Scorer: classifier, Posts: posts}, nil
}
