package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled patterns for cleaning up model output before JSON decoding.
var (
	codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\n?([\\s\\S]*?)\n?`{3}")

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy so nested structures are captured whole.
	jsonObjectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	jsonArrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// DecodeJSON decodes a value of type T from raw model output, tolerating
// the usual formatting quirks in LLM responses: markdown code fences,
// trailing commas, comments, and JSON embedded in surrounding prose.
//
// Strategy sequence:
//  1. Direct JSON decode
//  2. Strip code fences and retry
//  3. Fix common JSON issues and retry
//  4. Extract JSON from mixed content and retry
func DecodeJSON[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty input")
	}

	if v, err := tryDecode[T](trimmed); err == nil {
		return v, nil
	} else {
		slog.Debug("direct JSON decode failed, trying cleanup strategies",
			"error", err.Error(),
			"preview", preview(text, 100))
	}

	unfenced := stripCodeFences(trimmed)
	if unfenced != trimmed {
		if v, err := tryDecode[T](unfenced); err == nil {
			return v, nil
		}
	}

	cleaned := cleanupJSON(unfenced)
	if v, err := tryDecode[T](cleaned); err == nil {
		return v, nil
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if v, err := tryDecode[T](extracted); err == nil {
			return v, nil
		}
	}

	return zero, fmt.Errorf("no decodable JSON found in response")
}

func tryDecode[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

// stripCodeFences removes markdown code fences wherever they appear, plus
// single backticks wrapping the entire content.
func stripCodeFences(text string) string {
	cleaned := codeFenceRegex.ReplaceAllString(text, "$1")
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas and strips // and /* */ comments.
// Single quotes are left alone: rewriting them would corrupt valid JSON
// containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(strings.TrimSpace(text), "$1")
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls a JSON object or array out of mixed prose. Objects are
// tried first since they are the common shape in model responses.
func extractJSON(text string) string {
	if match := jsonObjectRegex.FindString(text); match != "" {
		return match
	}
	return jsonArrayRegex.FindString(text)
}

func preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
