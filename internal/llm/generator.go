package llm

import "context"

// RequestParams is an opaque parameter bag passed through to the backing
// model unmodified. The refinement loop never inspects it.
type RequestParams struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Metadata    map[string]string
}

// Generator produces a candidate response from an input prompt. It must
// accept either a single message or a list of message parts. A Generator
// is stateless from the caller's perspective, though implementations may
// retain conversation history internally (see HistoryRetainer).
type Generator interface {
	// Name identifies the generator for logging and run records.
	Name() string

	// Generate produces one assistant message from the given input.
	Generate(ctx context.Context, messages []Message, params *RequestParams) (*Message, error)
}

// HistoryRetainer is implemented by generators that keep their own
// conversation transcript across calls. The refinement loop uses this to
// decide whether refinement prompts need to embed the prior candidate
// verbatim.
type HistoryRetainer interface {
	RetainsHistory() bool
}

// Session is implemented by collaborators that hold resources for the
// duration of a top-level refinement call (connections, subprocesses).
// Attach acquires the resources and returns a release function; the loop
// attaches all sessions once at call entry and releases them in reverse
// order on every exit path.
type Session interface {
	Attach(ctx context.Context) (release func(), err error)
}
