package refine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/refinehq/refinery/internal/llm"
)

// Controller owns one refinement loop: iteration state, the quality
// ordering and tie-break policy, best-candidate tracking, the termination
// decision, and collaborator resource lifetime for the whole call.
//
// Each Generate call owns private state; the loop itself is strictly
// sequential. Independent refinement calls that must run concurrently
// should each use their own Controller so history inspection stays
// unambiguous.
type Controller struct {
	generator llm.Generator
	evaluator Evaluator
	criteria  string
	params    *llm.RequestParams
	cfg       Config
	logger    *slog.Logger

	mu      sync.Mutex
	history []RefinementRecord
}

// Options configures a Controller. Either Evaluator, or Criteria together
// with Factory, must be supplied; construction fails otherwise.
type Options struct {
	Generator llm.Generator

	// Evaluator is used directly when set.
	Evaluator Evaluator

	// Criteria is free-text evaluation criteria. When Evaluator is nil,
	// Factory builds one from these criteria.
	Criteria string
	Factory  EvaluatorFactory

	// Params is an opaque configuration bag passed through to the
	// generator and evaluator unmodified.
	Params *llm.RequestParams

	// Config is the loop configuration; nil means DefaultConfig().
	Config *Config

	Logger *slog.Logger
}

// New constructs a refinement controller.
func New(opts Options) (*Controller, error) {
	if opts.Generator == nil {
		return nil, &ConfigError{Reason: "generator is required"}
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		if opts.Criteria == "" {
			return nil, &ConfigError{Reason: "an evaluator or evaluation criteria is required"}
		}
		if opts.Factory == nil {
			return nil, &ConfigError{Reason: "an evaluator factory is required when only criteria are supplied"}
		}
		built, err := opts.Factory(opts.Criteria)
		if err != nil {
			return nil, fmt.Errorf("building evaluator: %w", err)
		}
		if built == nil {
			return nil, &ConfigError{Reason: "evaluator factory returned nil"}
		}
		evaluator = built
	}

	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.MaxIterations <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("MaxIterations must be positive, got %d", cfg.MaxIterations)}
	}
	if !cfg.MinRating.Valid() {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid MinRating %d", int(cfg.MinRating))}
	}

	criteria := opts.Criteria
	if criteria == "" {
		if holder, ok := evaluator.(CriteriaHolder); ok {
			criteria = holder.Criteria()
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		generator: opts.Generator,
		evaluator: evaluator,
		criteria:  criteria,
		params:    opts.Params,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Config returns the loop configuration.
func (c *Controller) Config() Config { return c.cfg }

// History returns the refinement records accumulated by the most recent
// Generate call, including a failed one. It is not part of Generate's
// return value.
func (c *Controller) History() []RefinementRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RefinementRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Generate runs the refinement loop on the given message and returns the
// best candidate observed. Errors from the generator or evaluator
// propagate with no local recovery; there is no partial-success contract.
func (c *Controller) Generate(ctx context.Context, message llm.Message) (*llm.Message, error) {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()

	// Attach all collaborator sessions once at call entry. Releases run
	// in reverse acquisition order on every exit path.
	var scope releaseStack
	defer scope.releaseAll()
	for _, collaborator := range []any{c.generator, c.evaluator} {
		if session, ok := collaborator.(llm.Session); ok {
			release, err := session.Attach(ctx)
			if err != nil {
				return nil, fmt.Errorf("attaching collaborator session: %w", err)
			}
			scope.push(release)
		}
	}

	request := message.Text()

	current, err := c.generator.Generate(ctx, []llm.Message{message}, c.params)
	if err != nil {
		return nil, fmt.Errorf("initial generation failed: %w", err)
	}

	// The first candidate is retained as best regardless of its true
	// quality: no evaluation exists yet, so Poor is the sentinel floor.
	best := current
	bestRating := Poor

	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("refinement canceled at iteration %d: %w", iteration+1, err)
		}

		evalPrompt := EvaluationPrompt(request, current.Text(), c.criteria, iteration)
		evaluation, err := c.evaluator.Evaluate(ctx, evalPrompt)
		if err != nil {
			return nil, fmt.Errorf("evaluation failed at iteration %d: %w", iteration+1, err)
		}

		c.mu.Lock()
		c.history = append(c.history, RefinementRecord{
			Attempt:    iteration + 1,
			Candidate:  current,
			Evaluation: evaluation,
		})
		c.mu.Unlock()

		c.logger.Debug("evaluation complete",
			"attempt", iteration+1,
			"rating", evaluation.Rating,
			"needs_improvement", evaluation.NeedsImprovement)

		// Strict greater-than: equal ratings never displace an existing
		// best, so ties keep the earliest iteration.
		if evaluation.Rating > bestRating {
			bestRating = evaluation.Rating
			best = current
			c.logger.Debug("new best candidate", "rating", bestRating, "attempt", iteration+1)
		}

		// Either condition alone terminates. Evaluators can emit the two
		// in conflict (high rating with needs_improvement=true, or the
		// reverse); both cases stop here.
		if evaluation.Rating >= c.cfg.MinRating || !evaluation.NeedsImprovement {
			c.logger.Debug("acceptable quality reached",
				"rating", evaluation.Rating,
				"min_rating", c.cfg.MinRating,
				"needs_improvement", evaluation.NeedsImprovement)
			return best, nil
		}

		refinementPrompt := RefinementPrompt(request, current.Text(), evaluation, iteration, c.cfg.HistoryRetained)
		current, err = c.generator.Generate(ctx, []llm.Message{llm.UserText(refinementPrompt)}, c.params)
		if err != nil {
			return nil, fmt.Errorf("refinement generation failed at iteration %d: %w", iteration+1, err)
		}
	}

	c.logger.Debug("iteration budget exhausted", "best_rating", bestRating)
	return best, nil
}

// releaseStack holds acquired resource guards and releases them in
// reverse acquisition order.
type releaseStack struct {
	releases []func()
}

func (s *releaseStack) push(release func()) {
	if release != nil {
		s.releases = append(s.releases, release)
	}
}

func (s *releaseStack) releaseAll() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}
