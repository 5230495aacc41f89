package refine

import (
	"context"
	"fmt"

	"github.com/refinehq/refinery/internal/llm"
)

// Evaluator produces a structured quality assessment of a candidate. Any
// conforming implementation can be substituted: model-backed, a test
// double, or a composite workflow.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (*EvaluationResult, error)
}

// CriteriaHolder is implemented by evaluators that carry their own stated
// evaluation criteria; the loop embeds them in evaluation prompts.
type CriteriaHolder interface {
	Criteria() string
}

// EvaluatorFactory builds an evaluator from free-text criteria. It is
// required when a controller is constructed with criteria alone.
type EvaluatorFactory func(criteria string) (Evaluator, error)

// StructuredEvaluator realizes the Evaluator contract by asking a
// Generator for a structured response and validating it. A response that
// cannot be parsed into the four required fields is a hard error, never
// silently defaulted.
type StructuredEvaluator struct {
	generator llm.Generator
	criteria  string
	params    *llm.RequestParams
}

var _ Evaluator = (*StructuredEvaluator)(nil)
var _ CriteriaHolder = (*StructuredEvaluator)(nil)

// NewStructuredEvaluator wraps a generator as an evaluator with the given
// stated criteria.
func NewStructuredEvaluator(generator llm.Generator, criteria string, params *llm.RequestParams) (*StructuredEvaluator, error) {
	if generator == nil {
		return nil, &ConfigError{Reason: "evaluator generator is required"}
	}
	return &StructuredEvaluator{
		generator: generator,
		criteria:  criteria,
		params:    params,
	}, nil
}

// Criteria returns the evaluator's stated evaluation criteria.
func (e *StructuredEvaluator) Criteria() string { return e.criteria }

// Evaluate sends the evaluation prompt to the backing generator and
// parses the reply into an EvaluationResult.
func (e *StructuredEvaluator) Evaluate(ctx context.Context, prompt string) (*EvaluationResult, error) {
	response, err := e.generator.Generate(ctx, []llm.Message{llm.UserText(prompt)}, e.params)
	if err != nil {
		return nil, fmt.Errorf("evaluator generation failed: %w", err)
	}
	return ParseEvaluation(response.Text())
}

// rawEvaluation uses pointer fields so missing required fields can be
// told apart from zero values.
type rawEvaluation struct {
	Rating           *string  `json:"rating"`
	Feedback         *string  `json:"feedback"`
	NeedsImprovement *bool    `json:"needs_improvement"`
	FocusAreas       []string `json:"focus_areas"`
}

// ParseEvaluation parses raw evaluator output into an EvaluationResult.
// The rating, feedback, and needs_improvement fields are required; focus
// areas may be empty. Returns a *ValidationError on any shortfall.
func ParseEvaluation(text string) (*EvaluationResult, error) {
	raw, err := llm.DecodeJSON[rawEvaluation](text)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error(), Raw: text}
	}

	if raw.Rating == nil {
		return nil, &ValidationError{Reason: "missing required field \"rating\"", Raw: text}
	}
	if raw.Feedback == nil {
		return nil, &ValidationError{Reason: "missing required field \"feedback\"", Raw: text}
	}
	if raw.NeedsImprovement == nil {
		return nil, &ValidationError{Reason: "missing required field \"needs_improvement\"", Raw: text}
	}

	rating, err := ParseRating(*raw.Rating)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error(), Raw: text}
	}

	return &EvaluationResult{
		Rating:           rating,
		Feedback:         *raw.Feedback,
		NeedsImprovement: *raw.NeedsImprovement,
		FocusAreas:       raw.FocusAreas,
	}, nil
}
