package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Sentinel command prefixes recognized by the passthrough generator.
const (
	CallToolIndicator      = "***CALL_TOOL"
	FixedResponseIndicator = "***FIXED_RESPONSE"
)

// ToolContent is one content item returned by a tool.
type ToolContent struct {
	Text string
}

// ToolResult is the outcome of a tool invocation. IsError marks failures
// the tool itself reported, as opposed to transport problems.
type ToolResult struct {
	IsError bool
	Content []ToolContent
}

// ToolInvoker executes named tools on behalf of the passthrough generator.
type ToolInvoker interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)
}

// ToolError reports a malformed tool command or a failed invocation. The
// offending fragment is preserved so callers can see exactly what was
// rejected.
type ToolError struct {
	Tool     string
	Fragment string
	Reason   string
}

func (e *ToolError) Error() string {
	switch {
	case e.Fragment != "" && e.Tool != "":
		return fmt.Sprintf("tool %q: %s: %q", e.Tool, e.Reason, e.Fragment)
	case e.Fragment != "":
		return fmt.Sprintf("%s: %q", e.Reason, e.Fragment)
	default:
		return fmt.Sprintf("tool %q: %s", e.Tool, e.Reason)
	}
}

// Passthrough is a deterministic Generator that returns its input
// unchanged. It exists to validate the refinement loop against a
// non-generative stand-in. Two sentinel commands are recognized in the
// input text:
//
//	***CALL_TOOL <tool-name> [arguments-json]
//	***FIXED_RESPONSE <literal>
//
// The first invokes a tool through the configured ToolInvoker and returns
// its content. The second permanently overrides all subsequent non-command
// outputs of this instance with the stored literal.
type Passthrough struct {
	tools ToolInvoker

	mu    sync.Mutex
	fixed string
}

var _ Generator = (*Passthrough)(nil)

// NewPassthrough creates a passthrough generator. The tool invoker may be
// nil when tool commands are not exercised.
func NewPassthrough(tools ToolInvoker) *Passthrough {
	return &Passthrough{tools: tools}
}

func (p *Passthrough) Name() string { return "passthrough" }

// Generate echoes the input back as an assistant message, subject to the
// sentinel commands described on the type.
func (p *Passthrough) Generate(ctx context.Context, messages []Message, params *RequestParams) (*Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("passthrough: no input messages")
	}

	last := messages[len(messages)-1].Text()

	if strings.HasPrefix(last, CallToolIndicator) {
		out, err := p.callTool(ctx, last)
		if err != nil {
			return nil, err
		}
		msg := AssistantText(out)
		return &msg, nil
	}

	if strings.HasPrefix(last, FixedResponseIndicator) {
		fixed := strings.TrimSpace(strings.TrimPrefix(last, FixedResponseIndicator))
		p.mu.Lock()
		p.fixed = fixed
		p.mu.Unlock()
		msg := AssistantText(fixed)
		return &msg, nil
	}

	p.mu.Lock()
	fixed := p.fixed
	p.mu.Unlock()
	if fixed != "" {
		msg := AssistantText(fixed)
		return &msg, nil
	}

	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Text()
	}
	msg := AssistantText(strings.Join(texts, "\n"))
	return &msg, nil
}

func (p *Passthrough) callTool(ctx context.Context, command string) (string, error) {
	name, args, err := parseToolCommand(command)
	if err != nil {
		return "", err
	}
	if p.tools == nil {
		return "", &ToolError{Tool: name, Reason: "no tool invoker configured"}
	}
	result, err := p.tools.CallTool(ctx, name, args)
	if err != nil {
		return "", &ToolError{Tool: name, Reason: err.Error()}
	}
	return formatToolResult(name, result), nil
}

// parseToolCommand splits "***CALL_TOOL <tool-name> [arguments-json]".
// A missing tool name or malformed JSON argument block is a hard error
// naming the raw fragment.
func parseToolCommand(command string) (string, map[string]any, error) {
	parts := strings.SplitN(command, " ", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return "", nil, &ToolError{
			Fragment: command,
			Reason:   "invalid tool command, expected '***CALL_TOOL <tool-name> [arguments-json]'",
		}
	}

	name := strings.TrimSpace(parts[1])

	var args map[string]any
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		if err := json.Unmarshal([]byte(parts[2]), &args); err != nil {
			return "", nil, &ToolError{
				Tool:     name,
				Fragment: parts[2],
				Reason:   "invalid JSON arguments",
			}
		}
	}

	return name, args, nil
}

// formatToolResult joins the result's content items one per line. A
// tool-reported failure is rendered as text rather than an error so the
// loop can observe it the way a model would.
func formatToolResult(name string, result *ToolResult) string {
	lines := make([]string, 0, len(result.Content))
	for _, item := range result.Content {
		lines = append(lines, item.Text)
	}
	joined := strings.Join(lines, "\n")

	if result.IsError {
		if joined == "" {
			joined = "Unknown error"
		}
		return fmt.Sprintf("Error calling tool '%s': %s", name, joined)
	}
	return joined
}
