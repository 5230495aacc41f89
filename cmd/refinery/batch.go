package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/refinehq/refinery/internal/llm"
	"github.com/refinehq/refinery/internal/refine"
	"github.com/refinehq/refinery/internal/storage"
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Refine every request in a file, one per line",
	Long: `Read requests from a file (one per line, blank lines and #-comments
skipped) and refine them concurrently. Each request gets its own
controller, so no refinement state is ever shared between in-flight
calls.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requests, err := readRequests(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(requests) == 0 {
			fmt.Fprintln(os.Stderr, "no requests found")
			os.Exit(1)
		}

		criteria, _ := cmd.Flags().GetString("criteria")
		if criteria == "" {
			criteria = cfg.Criteria
		}
		maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
		if maxConcurrent <= 0 {
			maxConcurrent = cfg.MaxConcurrent
		}
		if maxConcurrent <= 0 {
			maxConcurrent = 1
		}

		loopCfg, err := cfg.RefinementConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(maxConcurrent)

		var mu sync.Mutex
		failed := 0

		for i, request := range requests {
			group.Go(func() error {
				record, err := refineOne(groupCtx, request, criteria, loopCfg)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					red := color.New(color.FgRed).SprintFunc()
					fmt.Printf("%s [%d/%d] %s: %v\n", red("✗"), i+1, len(requests), preview(request), err)
					return nil // keep refining the rest
				}
				green := color.New(color.FgGreen).SprintFunc()
				fmt.Printf("%s [%d/%d] %s: %s in %d iteration(s)\n",
					green("✓"), i+1, len(requests), preview(request), record.BestRating, record.Iterations)
				if err := store.SaveRun(groupCtx, record); err != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to record run: %v\n", err)
				}
				return nil
			})
		}

		if err := group.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%d request(s), %d failed\n", len(requests), failed)
		if failed > 0 {
			os.Exit(1)
		}
	},
}

// refineOne runs a single refinement call with a private controller.
func refineOne(ctx context.Context, request, criteria string, loopCfg refine.Config) (*storage.RunRecord, error) {
	generator, err := newGenerator(loopCfg.HistoryRetained)
	if err != nil {
		return nil, err
	}
	evaluator, err := newEvaluator(criteria)
	if err != nil {
		return nil, err
	}
	controller, err := refine.New(refine.Options{
		Generator: generator,
		Evaluator: evaluator,
		Criteria:  criteria,
		Config:    &loopCfg,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	best, err := controller.Generate(ctx, llm.UserText(request))
	if err != nil {
		return nil, err
	}

	history := controller.History()
	rating, accepted := runOutcome(history, loopCfg)
	inTokens, outTokens := generator.Usage()

	return &storage.RunRecord{
		Request:      request,
		Result:       best.Text(),
		BestRating:   rating,
		Iterations:   len(history),
		Accepted:     accepted,
		Model:        generator.Name(),
		InputTokens:  inTokens,
		OutputTokens: outTokens,
		Duration:     time.Since(start),
	}, nil
}

func readRequests(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var requests []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requests = append(requests, line)
	}
	return requests, scanner.Err()
}

func preview(s string) string {
	if len(s) <= 40 {
		return s
	}
	return s[:40] + "..."
}

func init() {
	batchCmd.Flags().String("criteria", "", "evaluation criteria (overrides config)")
	batchCmd.Flags().Int("max-concurrent", 0, "concurrent refinement calls (default from config)")
	rootCmd.AddCommand(batchCmd)
}
