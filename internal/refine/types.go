// Package refine implements an evaluator-optimizer refinement loop: a
// generator produces a candidate response, an evaluator scores it against
// free-text criteria, and the loop feeds the evaluation back into the
// generator until the candidate reaches an acceptable quality or the
// iteration budget runs out. The best-rated candidate seen so far is
// always returned, with ties resolved to the earliest iteration.
package refine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/refinehq/refinery/internal/llm"
)

// QualityRating is the four-level ordinal quality score assigned by an
// evaluator. Ordering is by explicit integer rank so the strict-greater
// best-update rule and the greater-or-equal termination rule are
// unambiguous: Poor < Fair < Good < Excellent. There are no intermediate
// values.
type QualityRating int

const (
	Poor      QualityRating = 0 // Major improvements needed
	Fair      QualityRating = 1 // Several improvements needed
	Good      QualityRating = 2 // Minor improvements possible
	Excellent QualityRating = 3 // No improvements needed
)

// ratingTokens is the fixed vocabulary evaluators must emit.
var ratingTokens = map[string]QualityRating{
	"POOR":      Poor,
	"FAIR":      Fair,
	"GOOD":      Good,
	"EXCELLENT": Excellent,
}

func (r QualityRating) String() string {
	switch r {
	case Poor:
		return "POOR"
	case Fair:
		return "FAIR"
	case Good:
		return "GOOD"
	case Excellent:
		return "EXCELLENT"
	default:
		return fmt.Sprintf("QualityRating(%d)", int(r))
	}
}

// Valid reports whether r is one of the four defined levels.
func (r QualityRating) Valid() bool {
	return r >= Poor && r <= Excellent
}

// ParseRating maps a rating token from the fixed vocabulary to its rank.
// Unknown tokens are an error, never silently defaulted.
func ParseRating(token string) (QualityRating, error) {
	r, ok := ratingTokens[strings.ToUpper(strings.TrimSpace(token))]
	if !ok {
		return Poor, fmt.Errorf("unknown quality rating %q", token)
	}
	return r, nil
}

// MarshalJSON emits the rating token.
func (r QualityRating) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid quality rating %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts a rating token from the fixed vocabulary.
func (r *QualityRating) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("quality rating must be a string token: %w", err)
	}
	parsed, err := ParseRating(token)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// EvaluationResult is the structured quality assessment produced once per
// iteration by the evaluator. It is immutable once created.
type EvaluationResult struct {
	Rating           QualityRating `json:"rating"`
	Feedback         string        `json:"feedback"`
	NeedsImprovement bool          `json:"needs_improvement"`
	FocusAreas       []string      `json:"focus_areas"`
}

// RefinementRecord is one completed iteration: the candidate that was
// evaluated and the evaluation it received. Records are append-only.
type RefinementRecord struct {
	Attempt    int // 1-based iteration index
	Candidate  *llm.Message
	Evaluation *EvaluationResult
}

// Config controls the refinement loop. It is set at construction and
// immutable for the life of the controller.
type Config struct {
	// MinRating is the minimum acceptable quality rating. A candidate
	// rated at or above this terminates the loop.
	MinRating QualityRating

	// MaxIterations bounds the number of evaluate(+refine) rounds. It is
	// the sole anti-runaway safeguard; wall-clock bounding is the
	// caller's responsibility at the generator/evaluator boundary.
	MaxIterations int

	// HistoryRetained declares that the injected generator remembers
	// prior turns itself. Refinement prompts then reference that retained
	// context instead of embedding the prior candidate verbatim.
	HistoryRetained bool
}

// DefaultConfig returns the standard loop configuration: accept GOOD or
// better, at most 3 refinement rounds.
func DefaultConfig() Config {
	return Config{
		MinRating:     Good,
		MaxIterations: 3,
	}
}
