package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/refinehq/refinery/internal/refine"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent refinement runs",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return
		}

		for _, run := range runs {
			verdict := "exhausted"
			if run.Accepted {
				verdict = "accepted"
			}
			fmt.Printf("%s  %s  %-9s %s  %d iter  %v  %s\n",
				run.ID[:8],
				run.CreatedAt.Local().Format("2006-01-02 15:04"),
				colorRating(run.BestRating),
				verdict,
				run.Iterations,
				run.Duration.Round(time.Millisecond),
				previewRequest(run.Request),
			)
		}
	},
}

func colorRating(rating refine.QualityRating) string {
	switch rating {
	case refine.Excellent, refine.Good:
		return color.New(color.FgGreen).Sprint(rating)
	case refine.Fair:
		return color.New(color.FgYellow).Sprint(rating)
	default:
		return color.New(color.FgRed).Sprint(rating)
	}
}

func previewRequest(s string) string {
	if len(s) <= 60 {
		return s
	}
	return s[:60] + "..."
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
