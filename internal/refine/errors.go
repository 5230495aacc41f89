package refine

import "fmt"

// ConfigError reports controller misconfiguration: a required collaborator
// or factory missing at construction. It is raised before any iteration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "refine: invalid configuration: " + e.Reason
}

// ValidationError reports evaluator output that could not be parsed into
// an EvaluationResult. The loop aborts immediately; the raw output is
// preserved for diagnosis.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	raw := e.Raw
	if len(raw) > 500 {
		raw = raw[:500] + "... (truncated)"
	}
	return fmt.Sprintf("refine: invalid evaluation: %s (raw output: %q)", e.Reason, raw)
}
