package refine

import (
	"fmt"
	"strings"
)

// DefaultCriteria is embedded in evaluation prompts when the evaluator
// states no criteria of its own.
const DefaultCriteria = "Accuracy, completeness, clarity, and relevance to the original request."

// EvaluationPrompt builds the prompt asking the evaluator to assess a
// candidate against the original request. The template is deterministic:
// it embeds the request, the candidate, the stated criteria, and the
// iteration number, and instructs the evaluator to emit a rating token
// from the fixed four-level vocabulary plus feedback, an improvement
// flag, and 1-3 focus areas.
func EvaluationPrompt(originalRequest, candidateText, criteria string, iteration int) string {
	if strings.TrimSpace(criteria) == "" {
		criteria = DefaultCriteria
	}

	return fmt.Sprintf(`You are an expert evaluator judging the quality of a generated response against the user's original request. This is iteration %d of the refinement process.

ORIGINAL REQUEST:
%s

CURRENT RESPONSE:
%s

EVALUATION CRITERIA:
%s

Rate the response with exactly one of:
- EXCELLENT: No improvements needed
- GOOD: Only minor improvements possible
- FAIR: Several improvements needed
- POOR: Major improvements needed

Respond with JSON:
{
  "rating": "EXCELLENT|GOOD|FAIR|POOR",
  "feedback": "Specific, actionable feedback: what works well and what could be improved",
  "needs_improvement": true/false,
  "focus_areas": ["1-3 specific areas to focus on in the next iteration"]
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap in markdown code fences.`,
		iteration+1,
		originalRequest,
		candidateText,
		criteria,
	)
}

// RefinementPrompt builds the prompt asking the generator to improve the
// candidate based on the evaluation. The original request and the full
// feedback block are always embedded. The prior candidate is embedded
// verbatim only when historyRetained is false; a generator that retains
// its own conversation history already holds the prior response, and
// repeating it would grow the prompt without bound across iterations.
func RefinementPrompt(originalRequest, candidateText string, evaluation *EvaluationResult, iteration int, historyRetained bool) string {
	focusAreas := "None specified"
	if len(evaluation.FocusAreas) > 0 {
		focusAreas = strings.Join(evaluation.FocusAreas, ", ")
	}

	var b strings.Builder

	fmt.Fprintf(&b, `You are improving a response based on expert feedback. This is iteration %d of the refinement process.

ORIGINAL REQUEST:
%s
`, iteration+1, originalRequest)

	if !historyRetained {
		fmt.Fprintf(&b, `
PREVIOUS RESPONSE:
%s
`, candidateText)
	}

	fmt.Fprintf(&b, `
FEEDBACK:
Rating: %s
Details: %s
Focus areas: %s
`, evaluation.Rating, evaluation.Feedback, focusAreas)

	if historyRetained {
		b.WriteString(`
Your previous response is available in your conversation history.
`)
	}

	b.WriteString(`
Create an improved version of the response that:
1. Directly addresses each point in the feedback
2. Focuses on the areas listed above
3. Keeps the strengths of the previous response
4. Stays accurate and relevant to the original request

Provide your complete improved response without explanations or commentary.`)

	return b.String()
}
