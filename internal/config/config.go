// Package config loads refinery configuration from a YAML file and
// applies defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/refinehq/refinery/internal/refine"
)

// Config is the refinery configuration, loadable from YAML.
type Config struct {
	// Model is the generator model identifier. Empty means the built-in
	// default (overridable via REFINERY_MODEL).
	Model string `yaml:"model"`

	// MaxTokens caps generation length per call.
	MaxTokens int `yaml:"max_tokens"`

	// MinRating is the minimum acceptable quality rating token
	// (POOR, FAIR, GOOD, EXCELLENT).
	MinRating string `yaml:"min_rating"`

	// MaxIterations bounds refinement rounds per call.
	MaxIterations int `yaml:"max_iterations"`

	// HistoryRetained declares that the generator keeps its own
	// conversation transcript across calls.
	HistoryRetained bool `yaml:"history_retained"`

	// Criteria is the free-text evaluation criteria handed to the
	// evaluator.
	Criteria string `yaml:"criteria"`

	// DBPath locates the sqlite run log.
	DBPath string `yaml:"db_path"`

	// MaxConcurrent caps concurrent model API calls.
	MaxConcurrent int `yaml:"max_concurrent"`

	// RequestsPerMinute paces model API calls. 0 disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		MaxTokens:       4096,
		MinRating:       refine.Good.String(),
		MaxIterations:   3,
		HistoryRetained: false,
		DBPath:          ".refinery/runs.db",
		MaxConcurrent:   3,
	}
}

// Load reads a YAML config file over the defaults. A missing file is an
// error; use Default directly when no file is expected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and token vocabulary.
func (c *Config) Validate() error {
	if _, err := refine.ParseRating(c.MinRating); err != nil {
		return fmt.Errorf("min_rating: %w", err)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", c.MaxTokens)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent cannot be negative, got %d", c.MaxConcurrent)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative, got %d", c.RequestsPerMinute)
	}
	return nil
}

// RefinementConfig converts the YAML fields into a loop configuration.
// Call Validate first; an invalid rating token fails here too.
func (c *Config) RefinementConfig() (refine.Config, error) {
	minRating, err := refine.ParseRating(c.MinRating)
	if err != nil {
		return refine.Config{}, fmt.Errorf("min_rating: %w", err)
	}
	return refine.Config{
		MinRating:       minRating,
		MaxIterations:   c.MaxIterations,
		HistoryRetained: c.HistoryRetained,
	}, nil
}
