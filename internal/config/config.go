// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package config loads and validates application configuration using
// Koanf v2 with layered sources: built-in defaults, an optional YAML
// config file, and environment variables (highest priority).
//
// All configuration problems are fatal at startup. The process must not
// serve traffic with an invalid bucketing setup, a missing database URL
// or an unreadable model artifact.
package config

import (
	"fmt"
	"time"
)

// Variant labels recognized by the experiment bucketing setup.
// The group count must equal the number of labels defined here.
const (
	VariantControl = "control"
	VariantTest    = "test"
)

// expectedGroupCount is the number of variants the bucketing remainder
// can map to. A group count that can produce any other remainder is a
// configuration error.
const expectedGroupCount = 2

// lmsModelPaths are the fixed artifact locations substituted when the
// sandbox override mode is active (IS_LMS=1). They mirror the grading
// environment's well-known paths.
var lmsModelPaths = map[string]string{
	"":             "/workdir/user_input/model",
	VariantControl: "/workdir/user_input/model_control",
	VariantTest:    "/workdir/user_input/model_test",
}

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Database   DatabaseConfig   `koanf:"database"`
	Features   FeaturesConfig   `koanf:"features"`
	Model      ModelConfig      `koanf:"model"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds request-level API settings.
type APIConfig struct {
	// DefaultLimit is used when the limit query parameter is absent.
	DefaultLimit int `koanf:"default_limit"`
	// MaxLimit caps the limit query parameter.
	MaxLimit int `koanf:"max_limit"`
}

// DatabaseConfig holds Postgres connection settings for the feature store.
type DatabaseConfig struct {
	// URL is the Postgres connection string (POSTGRES_URL).
	URL string `koanf:"url"`
	// ChunkSize is the number of rows fetched per query batch during
	// the startup bulk loads.
	ChunkSize int `koanf:"chunk_size"`
}

// FeaturesConfig names the feature store tables.
type FeaturesConfig struct {
	UserTable  string `koanf:"user_table"`
	LikesTable string `koanf:"likes_table"`
	// PostTable is the post feature table used in single-model mode and
	// for the test variant in A/B mode.
	PostTable string `koanf:"post_table"`
	// PostTableControl is the control variant's post feature table
	// (A/B mode only). Variants may use structurally different tables.
	PostTableControl string `koanf:"post_table_control"`
}

// ModelConfig holds model artifact locations.
type ModelConfig struct {
	// Path is the model artifact used in single-model mode.
	Path string `koanf:"path"`
	// ControlPath and TestPath are the per-variant artifacts (A/B mode).
	ControlPath string `koanf:"control_path"`
	TestPath    string `koanf:"test_path"`
	// LMSOverride substitutes fixed well-known artifact paths for
	// grading/sandbox environments (IS_LMS=1).
	LMSOverride bool `koanf:"lms_override"`
}

// ExperimentConfig holds A/B bucketing settings.
type ExperimentConfig struct {
	// Enabled switches the service into dual-model A/B mode.
	Enabled bool `koanf:"enabled"`
	// Salt is appended to the user id before hashing (SALTNAME).
	// It is pinned per experiment; changing it reshuffles all users.
	Salt string `koanf:"salt"`
	// Groups is the bucketing modulus (NUMBER_GROUP). Must equal the
	// number of defined variant labels.
	Groups int `koanf:"groups"`
}

// SecurityConfig holds rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultLimit: 5,
			MaxLimit:     200,
		},
		Database: DatabaseConfig{
			URL:       "",
			ChunkSize: 200000,
		},
		Features: FeaturesConfig{
			UserTable:        "user_data",
			LikesTable:       "feed_data",
			PostTable:        "post_features",
			PostTableControl: "",
		},
		Model: ModelConfig{
			Path:        "model.txt",
			ControlPath: "",
			TestPath:    "",
			LMSOverride: false,
		},
		Experiment: ExperimentConfig{
			Enabled: false,
			Salt:    "",
			Groups:  expectedGroupCount,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// ModelPath resolves the single-mode model artifact location,
// honoring the sandbox override.
func (c *Config) ModelPath() string {
	if c.Model.LMSOverride {
		return lmsModelPaths[""]
	}
	return c.Model.Path
}

// VariantModelPath resolves the artifact location for one variant label,
// honoring the sandbox override.
func (c *Config) VariantModelPath(variant string) string {
	if c.Model.LMSOverride {
		return lmsModelPaths[variant]
	}
	switch variant {
	case VariantControl:
		return c.Model.ControlPath
	case VariantTest:
		return c.Model.TestPath
	}
	return ""
}

// VariantPostTable resolves the post feature table for one variant label.
func (c *Config) VariantPostTable(variant string) string {
	if variant == VariantControl {
		return c.Features.PostTableControl
	}
	return c.Features.PostTable
}

// Validate checks the configuration for fatal problems. It returns an
// error describing the first problem found; the process must not start
// serving traffic when Validate fails.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set POSTGRES_URL)")
	}
	if c.Database.ChunkSize < 1 {
		return fmt.Errorf("database.chunk_size must be >= 1, got %d", c.Database.ChunkSize)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.API.DefaultLimit < 0 {
		return fmt.Errorf("api.default_limit must be >= 0, got %d", c.API.DefaultLimit)
	}
	if c.API.MaxLimit < c.API.DefaultLimit {
		return fmt.Errorf("api.max_limit (%d) must be >= api.default_limit (%d)", c.API.MaxLimit, c.API.DefaultLimit)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be >= 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
		}
	}

	if c.Experiment.Enabled {
		return c.validateExperiment()
	}
	return c.validateSingleModel()
}

// validateSingleModel checks settings required in single-model mode.
func (c *Config) validateSingleModel() error {
	if c.ModelPath() == "" {
		return fmt.Errorf("model.path is required in single-model mode")
	}
	if c.Features.PostTable == "" {
		return fmt.Errorf("features.post_table is required in single-model mode")
	}
	return nil
}

// validateExperiment checks settings required in A/B mode. A group count
// that cannot map every remainder onto a variant label is rejected here,
// before first use.
func (c *Config) validateExperiment() error {
	if c.Experiment.Salt == "" {
		return fmt.Errorf("experiment.salt is required in A/B mode (set SALTNAME)")
	}
	if c.Experiment.Groups != expectedGroupCount {
		return fmt.Errorf("experiment.groups must be %d to map onto {%s, %s}, got %d",
			expectedGroupCount, VariantControl, VariantTest, c.Experiment.Groups)
	}
	for _, variant := range []string{VariantControl, VariantTest} {
		if c.VariantModelPath(variant) == "" {
			return fmt.Errorf("model path for %s variant is required in A/B mode", variant)
		}
		if c.VariantPostTable(variant) == "" {
			return fmt.Errorf("post feature table for %s variant is required in A/B mode", variant)
		}
	}
	return nil
}
