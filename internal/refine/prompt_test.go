package refine

import (
	"strings"
	"testing"
)

func TestEvaluationPromptContents(t *testing.T) {
	prompt := EvaluationPrompt("write a haiku", "some haiku", "must be 5-7-5", 0)

	for _, want := range []string{
		"write a haiku",
		"some haiku",
		"must be 5-7-5",
		"iteration 1",
		"EXCELLENT", "GOOD", "FAIR", "POOR",
		"needs_improvement",
		"focus_areas",
		"ONLY raw JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("evaluation prompt missing %q", want)
		}
	}
}

func TestEvaluationPromptDefaultCriteria(t *testing.T) {
	prompt := EvaluationPrompt("req", "resp", "  ", 2)
	if !strings.Contains(prompt, DefaultCriteria) {
		t.Error("blank criteria should fall back to the default")
	}
	if !strings.Contains(prompt, "iteration 3") {
		t.Error("iteration index should render 1-based")
	}
}

func TestRefinementPromptEmbedsPriorCandidate(t *testing.T) {
	evaluation := &EvaluationResult{
		Rating:           Fair,
		Feedback:         "too terse",
		NeedsImprovement: true,
		FocusAreas:       []string{"imagery", "rhythm"},
	}

	prompt := RefinementPrompt("write a haiku", "old haiku text", evaluation, 0, false)

	if !strings.Contains(prompt, "PREVIOUS RESPONSE:") {
		t.Error("prompt should carry the prior-response block when history is not retained")
	}
	if !strings.Contains(prompt, "old haiku text") {
		t.Error("prompt should embed the prior candidate verbatim")
	}
	if strings.Contains(prompt, "conversation history") {
		t.Error("prompt should not reference retained context when history is not retained")
	}
	if !strings.Contains(prompt, "Rating: FAIR") {
		t.Error("prompt should render the rating token")
	}
	if !strings.Contains(prompt, "Focus areas: imagery, rhythm") {
		t.Error("focus areas should be comma-joined")
	}
}

func TestRefinementPromptWithRetainedHistory(t *testing.T) {
	evaluation := &EvaluationResult{
		Rating:           Poor,
		Feedback:         "start over",
		NeedsImprovement: true,
	}

	prompt := RefinementPrompt("write a haiku", "old haiku text", evaluation, 1, true)

	if strings.Contains(prompt, "old haiku text") {
		t.Error("prompt must not duplicate the prior candidate when the generator retains history")
	}
	if strings.Contains(prompt, "PREVIOUS RESPONSE:") {
		t.Error("prior-response block should be omitted when history is retained")
	}
	if !strings.Contains(prompt, "conversation history") {
		t.Error("prompt should point at the generator's retained context")
	}
	if !strings.Contains(prompt, "iteration 2") {
		t.Error("iteration index should render 1-based")
	}
}

func TestRefinementPromptEmptyFocusAreas(t *testing.T) {
	evaluation := &EvaluationResult{
		Rating:           Fair,
		Feedback:         "meh",
		NeedsImprovement: true,
	}

	prompt := RefinementPrompt("req", "resp", evaluation, 0, false)
	if !strings.Contains(prompt, "Focus areas: None specified") {
		t.Error(`empty focus areas must render exactly "None specified"`)
	}
}
