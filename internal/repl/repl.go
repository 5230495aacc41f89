// Package repl provides an interactive shell for running refinement
// calls: type a request, watch it converge, inspect the per-iteration
// records afterwards. Session state is in-memory only.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/refinehq/refinery/internal/llm"
	"github.com/refinehq/refinery/internal/refine"
)

// ControllerFactory builds a fresh controller for one refinement call.
// Each call gets its own controller so in-flight state is never shared.
type ControllerFactory func(criteria string, cfg refine.Config) (*refine.Controller, error)

// CommandHandler handles a specific REPL command.
type CommandHandler func(args []string) error

// Config holds REPL configuration.
type Config struct {
	Factory  ControllerFactory
	Criteria string
	Loop     refine.Config
}

// REPL is the interactive refinement shell.
type REPL struct {
	factory  ControllerFactory
	criteria string
	loop     refine.Config
	rl       *readline.Instance
	ctx      context.Context
	last     []refine.RefinementRecord
	commands map[string]CommandHandler
}

// New creates a REPL instance.
func New(cfg *Config) (*REPL, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("controller factory is required")
	}

	loop := cfg.Loop
	if loop.MaxIterations <= 0 {
		loop = refine.DefaultConfig()
	}

	r := &REPL{
		factory:  cfg.Factory,
		criteria: cfg.Criteria,
		loop:     loop,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("refinery> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.dispatch(line); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("✗"), err)
		}
	}
}

// dispatch routes a line to a registered command, or treats it as a
// refinement request.
func (r *REPL) dispatch(line string) error {
	fields := strings.Fields(line)
	if handler, ok := r.commands[fields[0]]; ok {
		return handler(fields[1:])
	}
	return r.runRequest(line)
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["criteria"] = r.cmdCriteria
	r.commands["rating"] = r.cmdRating
	r.commands["iterations"] = r.cmdIterations
	r.commands["settings"] = r.cmdSettings
	r.commands["last"] = r.cmdLast
}

func (r *REPL) printWelcome() {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s - iterative refinement shell\n", bold("refinery"))
	fmt.Println("Type a request to refine it, or 'help' for commands.")
}

func (r *REPL) cmdHelp(args []string) error {
	fmt.Println(`Commands:
  criteria <text>     set evaluation criteria
  rating <token>      set the minimum acceptable rating (POOR|FAIR|GOOD|EXCELLENT)
  iterations <n>      set the refinement iteration cap
  settings            show current session settings
  last                show per-iteration records of the last run
  help                show this help
  exit, quit          leave the shell

Anything else is treated as a request and refined.`)
	return nil
}

func (r *REPL) cmdCriteria(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: criteria <text>")
	}
	r.criteria = strings.Join(args, " ")
	fmt.Println("criteria updated")
	return nil
}

func (r *REPL) cmdRating(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rating <POOR|FAIR|GOOD|EXCELLENT>")
	}
	rating, err := refine.ParseRating(args[0])
	if err != nil {
		return err
	}
	r.loop.MinRating = rating
	fmt.Printf("minimum rating set to %s\n", rating)
	return nil
}

func (r *REPL) cmdIterations(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: iterations <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("iterations must be a positive integer, got %q", args[0])
	}
	r.loop.MaxIterations = n
	fmt.Printf("iteration cap set to %d\n", n)
	return nil
}

func (r *REPL) cmdSettings(args []string) error {
	criteria := r.criteria
	if criteria == "" {
		criteria = "(default)"
	}
	fmt.Printf("criteria:    %s\n", criteria)
	fmt.Printf("min rating:  %s\n", r.loop.MinRating)
	fmt.Printf("iterations:  %d\n", r.loop.MaxIterations)
	fmt.Printf("history:     retained=%v\n", r.loop.HistoryRetained)
	return nil
}

func (r *REPL) cmdLast(args []string) error {
	if len(r.last) == 0 {
		fmt.Println("no runs yet")
		return nil
	}
	for _, record := range r.last {
		fmt.Printf("--- attempt %d: %s (needs improvement: %v)\n",
			record.Attempt, record.Evaluation.Rating, record.Evaluation.NeedsImprovement)
		fmt.Printf("    feedback: %s\n", record.Evaluation.Feedback)
		if len(record.Evaluation.FocusAreas) > 0 {
			fmt.Printf("    focus: %s\n", strings.Join(record.Evaluation.FocusAreas, ", "))
		}
	}
	return nil
}

func (r *REPL) runRequest(request string) error {
	controller, err := r.factory(r.criteria, r.loop)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	best, err := controller.Generate(r.ctx, llm.UserText(request))
	r.last = controller.History()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	rating := bestRating(r.last)
	fmt.Printf("%s refined in %d iteration(s), best rating %s\n", green("✓"), len(r.last), rating)
	fmt.Println(best.Text())
	return nil
}

func bestRating(records []refine.RefinementRecord) refine.QualityRating {
	best := refine.Poor
	for _, record := range records {
		if record.Evaluation.Rating > best {
			best = record.Evaluation.Rating
		}
	}
	return best
}
