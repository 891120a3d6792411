// Package config loads engine configuration: defaults, then a YAML file,
// then PILOT_* environment overrides, in that priority order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's configurable defaults: the per-step deadline,
// the default/browser-extraction maxAttempts, and the token budget.
type Config struct {
	// StepDeadline is the per-step timeout.
	StepDeadline time.Duration `yaml:"step_deadline"`

	// DefaultMaxAttempts applies when a step's input omits maxAttempts.
	DefaultMaxAttempts int `yaml:"default_max_attempts"`

	// BrowserExtractMaxAttempts is the higher default for browser-extraction
	// named tools.
	BrowserExtractMaxAttempts int `yaml:"browser_extract_max_attempts"`

	// TokenBudget is the shared per-run token counter ceiling.
	TokenBudget int64 `yaml:"token_budget"`

	// MaxConcurrency is loaded from YAML but is not read by any component:
	// the Budget Manager and Run Store track every run they see and never
	// evict entries, whatever its value.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RiskyTools is the statically configured set of tool names requiring
	// approval. The plausible default is empty.
	RiskyTools []string `yaml:"risky_tools"`

	// ArtifactDir is the Artifact Store's base directory.
	ArtifactDir string `yaml:"artifact_dir"`

	// RedisAddr, if non-empty, switches the Event Bus and Run Store to
	// their Redis-backed implementations.
	RedisAddr string `yaml:"redis_addr"`
}

// Default returns the engine's built-in defaults.
func Default() *Config {
	return &Config{
		StepDeadline:              90 * time.Second,
		DefaultMaxAttempts:        2,
		BrowserExtractMaxAttempts: 6,
		TokenBudget:               100_000,
		MaxConcurrency:            0,
		RiskyTools:                nil,
		ArtifactDir:               "./artifacts",
	}
}

// Load reads path as YAML over Default(), then applies PILOT_* env
// overrides. path == "" returns Default() with only env overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PILOT_STEP_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StepDeadline = d
		}
	}
	if v := os.Getenv("PILOT_DEFAULT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultMaxAttempts = n
		}
	}
	if v := os.Getenv("PILOT_BROWSER_EXTRACT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BrowserExtractMaxAttempts = n
		}
	}
	if v := os.Getenv("PILOT_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TokenBudget = n
		}
	}
	if v := os.Getenv("PILOT_ARTIFACT_DIR"); v != "" {
		cfg.ArtifactDir = v
	}
	if v := os.Getenv("PILOT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
}
