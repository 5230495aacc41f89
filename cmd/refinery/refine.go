package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/refinehq/refinery/internal/llm"
	"github.com/refinehq/refinery/internal/refine"
	"github.com/refinehq/refinery/internal/storage"
)

var refineCmd = &cobra.Command{
	Use:   "refine [request...]",
	Short: "Refine a single request and print the best response",
	Long: `Run one evaluator-optimizer refinement call on the given request.

The generator produces a response, the evaluator rates it against the
configured criteria, and the loop iterates until the response reaches the
minimum acceptable rating (or the evaluator reports no further
improvement is needed), bounded by the iteration cap. The outcome is
recorded in the run log unless --no-save is given.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		request := strings.Join(args, " ")

		criteria, _ := cmd.Flags().GetString("criteria")
		if criteria == "" {
			criteria = cfg.Criteria
		}
		noSave, _ := cmd.Flags().GetBool("no-save")
		verbose, _ := cmd.Flags().GetBool("verbose")

		loopCfg, err := cfg.RefinementConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if v, _ := cmd.Flags().GetString("min-rating"); v != "" {
			rating, err := refine.ParseRating(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			loopCfg.MinRating = rating
		}
		if v, _ := cmd.Flags().GetInt("max-iterations"); v > 0 {
			loopCfg.MaxIterations = v
		}
		if v, _ := cmd.Flags().GetBool("retain-history"); v {
			loopCfg.HistoryRetained = true
		}

		generator, err := newGenerator(loopCfg.HistoryRetained)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		evaluator, err := newEvaluator(criteria)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		controller, err := refine.New(refine.Options{
			Generator: generator,
			Evaluator: evaluator,
			Criteria:  criteria,
			Config:    &loopCfg,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		start := time.Now()

		best, err := controller.Generate(ctx, llm.UserText(request))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		elapsed := time.Since(start)

		history := controller.History()
		rating, accepted := runOutcome(history, loopCfg)

		fmt.Println(best.Text())

		verdict := color.New(color.FgGreen).SprintFunc()("✓")
		if !accepted {
			verdict = color.New(color.FgYellow).SprintFunc()("!")
		}
		fmt.Fprintf(os.Stderr, "%s %s after %d iteration(s) in %v\n",
			verdict, rating, len(history), elapsed.Round(time.Millisecond))

		if verbose {
			for _, record := range history {
				fmt.Fprintf(os.Stderr, "  attempt %d: %s - %s\n",
					record.Attempt, record.Evaluation.Rating, record.Evaluation.Feedback)
			}
		}

		if !noSave {
			inTokens, outTokens := generator.Usage()
			if err := saveRun(ctx, &storage.RunRecord{
				Request:      request,
				Result:       best.Text(),
				BestRating:   rating,
				Iterations:   len(history),
				Accepted:     accepted,
				Model:        generator.Name(),
				InputTokens:  inTokens,
				OutputTokens: outTokens,
				Duration:     elapsed,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to record run: %v\n", err)
			}
		}
	},
}

// runOutcome derives the best rating and whether the loop terminated on
// quality rather than iteration exhaustion.
func runOutcome(history []refine.RefinementRecord, loopCfg refine.Config) (refine.QualityRating, bool) {
	best := refine.Poor
	for _, record := range history {
		if record.Evaluation.Rating > best {
			best = record.Evaluation.Rating
		}
	}
	if len(history) == 0 {
		return best, false
	}
	last := history[len(history)-1].Evaluation
	accepted := last.Rating >= loopCfg.MinRating || !last.NeedsImprovement
	return best, accepted
}

func saveRun(ctx context.Context, run *storage.RunRecord) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, run)
}

func init() {
	refineCmd.Flags().String("criteria", "", "evaluation criteria (overrides config)")
	refineCmd.Flags().String("min-rating", "", "minimum acceptable rating (POOR|FAIR|GOOD|EXCELLENT)")
	refineCmd.Flags().Int("max-iterations", 0, "refinement iteration cap")
	refineCmd.Flags().Bool("retain-history", false, "generator keeps its conversation transcript across iterations")
	refineCmd.Flags().Bool("no-save", false, "do not record the run in the run log")
	refineCmd.Flags().BoolP("verbose", "v", false, "print per-iteration evaluations")
	rootCmd.AddCommand(refineCmd)
}
