package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/refinehq/refinery/internal/refine"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", cfg.MaxTokens)
	}
	if cfg.MinRating != "GOOD" {
		t.Errorf("MinRating = %q", cfg.MinRating)
	}
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d", cfg.MaxIterations)
	}
	if cfg.HistoryRetained {
		t.Error("HistoryRetained should default to false")
	}
	if cfg.DBPath != ".refinery/runs.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refinery.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model: claude-3-5-haiku-20241022
min_rating: EXCELLENT
max_iterations: 5
history_retained: true
criteria: "clarity and brevity"
requests_per_minute: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.MinRating != "EXCELLENT" || cfg.MaxIterations != 5 || !cfg.HistoryRetained {
		t.Errorf("loop fields: %+v", cfg)
	}
	if cfg.Criteria != "clarity and brevity" {
		t.Errorf("Criteria = %q", cfg.Criteria)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxTokens != 4096 || cfg.DBPath != ".refinery/runs.db" {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "model: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parsing YAML") {
		t.Fatalf("expected YAML parse error, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad rating", func(c *Config) { c.MinRating = "SUPERB" }, "min_rating"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "max_iterations"},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, "max_tokens"},
		{"negative concurrency", func(c *Config) { c.MaxConcurrent = -1 }, "max_concurrent"},
		{"negative rate", func(c *Config) { c.RequestsPerMinute = -5 }, "requests_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRefinementConfig(t *testing.T) {
	cfg := Default()
	cfg.MinRating = "fair"
	cfg.MaxIterations = 7
	cfg.HistoryRetained = true

	loop, err := cfg.RefinementConfig()
	if err != nil {
		t.Fatalf("RefinementConfig: %v", err)
	}
	if loop.MinRating != refine.Fair || loop.MaxIterations != 7 || !loop.HistoryRetained {
		t.Errorf("loop config = %+v", loop)
	}

	cfg.MinRating = "NOPE"
	if _, err := cfg.RefinementConfig(); err == nil {
		t.Error("expected error for invalid rating token")
	}
}
