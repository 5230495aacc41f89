package repl

import (
	"context"
	"errors"
	"testing"

	"github.com/refinehq/refinery/internal/llm"
	"github.com/refinehq/refinery/internal/refine"
)

type stubEvaluator struct {
	result *refine.EvaluationResult
	err    error
}

func (s *stubEvaluator) Evaluate(ctx context.Context, prompt string) (*refine.EvaluationResult, error) {
	return s.result, s.err
}

func acceptingFactory(t *testing.T) ControllerFactory {
	t.Helper()
	return func(criteria string, cfg refine.Config) (*refine.Controller, error) {
		return refine.New(refine.Options{
			Generator: llm.NewPassthrough(nil),
			Evaluator: &stubEvaluator{result: &refine.EvaluationResult{
				Rating:           refine.Excellent,
				Feedback:         "fine as is",
				NeedsImprovement: false,
			}},
			Config: &cfg,
		})
	}
}

func newTestREPL(t *testing.T, factory ControllerFactory) *REPL {
	t.Helper()
	r, err := New(&Config{Factory: factory, Loop: refine.DefaultConfig()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.ctx = context.Background()
	return r
}

func TestNewRequiresFactory(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Fatal("expected error without a factory")
	}
}

func TestNewDefaultsLoopConfig(t *testing.T) {
	r, err := New(&Config{Factory: acceptingFactory(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.loop.MaxIterations != refine.DefaultConfig().MaxIterations {
		t.Errorf("loop config not defaulted: %+v", r.loop)
	}
}

func TestCriteriaCommand(t *testing.T) {
	r := newTestREPL(t, acceptingFactory(t))

	if err := r.dispatch("criteria clarity and correct grammar"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if r.criteria != "clarity and correct grammar" {
		t.Errorf("criteria = %q", r.criteria)
	}

	if err := r.cmdCriteria(nil); err == nil {
		t.Error("expected usage error with no arguments")
	}
}

func TestRatingCommand(t *testing.T) {
	r := newTestREPL(t, acceptingFactory(t))

	if err := r.dispatch("rating excellent"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if r.loop.MinRating != refine.Excellent {
		t.Errorf("MinRating = %v", r.loop.MinRating)
	}

	if err := r.dispatch("rating SUPERB"); err == nil {
		t.Error("expected error for unknown rating token")
	}
	if err := r.cmdRating([]string{"GOOD", "extra"}); err == nil {
		t.Error("expected usage error for extra arguments")
	}
}

func TestIterationsCommand(t *testing.T) {
	r := newTestREPL(t, acceptingFactory(t))

	if err := r.dispatch("iterations 5"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if r.loop.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d", r.loop.MaxIterations)
	}

	for _, bad := range []string{"0", "-2", "many"} {
		if err := r.cmdIterations([]string{bad}); err == nil {
			t.Errorf("iterations %q: expected error", bad)
		}
	}
}

func TestDispatchRunsRequest(t *testing.T) {
	r := newTestREPL(t, acceptingFactory(t))

	if err := r.dispatch("write a limerick about compilers"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(r.last) != 1 {
		t.Fatalf("last run should hold one record, got %d", len(r.last))
	}
	if r.last[0].Evaluation.Rating != refine.Excellent {
		t.Errorf("recorded rating = %v", r.last[0].Evaluation.Rating)
	}
}

func TestRunRequestFactoryError(t *testing.T) {
	r := newTestREPL(t, func(criteria string, cfg refine.Config) (*refine.Controller, error) {
		return nil, errors.New("no backend configured")
	})

	if err := r.dispatch("some request"); err == nil {
		t.Fatal("expected factory error to surface")
	}
}

func TestRunRequestKeepsHistoryOnFailure(t *testing.T) {
	evaluator := &stubEvaluator{err: errors.New("evaluation backend down")}
	r := newTestREPL(t, func(criteria string, cfg refine.Config) (*refine.Controller, error) {
		return refine.New(refine.Options{
			Generator: llm.NewPassthrough(nil),
			Evaluator: evaluator,
			Config:    &cfg,
		})
	})

	if err := r.dispatch("some request"); err == nil {
		t.Fatal("expected evaluation error to surface")
	}
	if len(r.last) != 0 {
		t.Errorf("failed run before any evaluation should leave no records, got %d", len(r.last))
	}
}

func TestBestRating(t *testing.T) {
	records := []refine.RefinementRecord{
		{Attempt: 1, Evaluation: &refine.EvaluationResult{Rating: refine.Fair}},
		{Attempt: 2, Evaluation: &refine.EvaluationResult{Rating: refine.Good}},
		{Attempt: 3, Evaluation: &refine.EvaluationResult{Rating: refine.Fair}},
	}
	if got := bestRating(records); got != refine.Good {
		t.Errorf("bestRating = %v, want Good", got)
	}
	if got := bestRating(nil); got != refine.Poor {
		t.Errorf("bestRating(nil) = %v, want Poor", got)
	}
}
