package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refinehq/refinery/internal/refine"
	"github.com/refinehq/refinery/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive refinement shell",
	Long: `Start an interactive shell for running refinement calls.

Type a request to refine it; adjust criteria, the minimum rating, and the
iteration cap between runs; inspect the last run's per-iteration records
with 'last'. Type 'help' in the shell for commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		loopCfg, err := cfg.RefinementConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Fresh collaborators per run keep refinement state private to
		// each call.
		factory := func(criteria string, loop refine.Config) (*refine.Controller, error) {
			generator, err := newGenerator(loop.HistoryRetained)
			if err != nil {
				return nil, err
			}
			evaluator, err := newEvaluator(criteria)
			if err != nil {
				return nil, err
			}
			return refine.New(refine.Options{
				Generator: generator,
				Evaluator: evaluator,
				Criteria:  criteria,
				Config:    &loop,
			})
		}

		r, err := repl.New(&repl.Config{
			Factory:  factory,
			Criteria: cfg.Criteria,
			Loop:     loopCfg,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create REPL: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
