package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refinehq/refinery/internal/config"
	"github.com/refinehq/refinery/internal/llm"
	"github.com/refinehq/refinery/internal/refine"
	"github.com/refinehq/refinery/internal/storage"
)

var (
	configPath string
	dbPath     string

	// cfg is populated by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Iterative refinement loop for LLM output",
	Long: `refinery runs an evaluator-optimizer loop: a generator model produces a
response, an evaluator model scores it against your criteria, and the
loop feeds the feedback back into the generator until the response is
good enough or the iteration budget runs out. The best-rated response
seen is always returned.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the run log database (overrides config)")
}

// openStore opens the sqlite run log at the configured path.
func openStore() (storage.Store, error) {
	return storage.NewSQLite(cfg.DBPath)
}

// newGenerator builds the Claude-backed generator for refinement calls.
func newGenerator(retainHistory bool) (*llm.Claude, error) {
	return llm.NewClaude(llm.ClaudeConfig{
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		RetainHistory:     retainHistory,
	})
}

// newEvaluator builds a separate Claude instance wrapped as a structured
// evaluator. The evaluator never shares the generator's conversation
// transcript.
func newEvaluator(criteria string) (refine.Evaluator, error) {
	claude, err := llm.NewClaude(llm.ClaudeConfig{
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}
	return refine.NewStructuredEvaluator(claude, criteria, nil)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
