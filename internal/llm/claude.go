package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Model tiers. Sonnet is the default for generation and evaluation; Haiku
// is available for cheap auxiliary calls.
//
// Environment overrides:
//   - REFINERY_MODEL: override the default model
const (
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-3-5-haiku-20241022"
)

// DefaultModel returns the default model, checking REFINERY_MODEL first.
func DefaultModel() string {
	if model := os.Getenv("REFINERY_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// ClaudeConfig configures a Claude-backed generator.
type ClaudeConfig struct {
	APIKey            string // falls back to ANTHROPIC_API_KEY
	Model             string // default: DefaultModel()
	MaxTokens         int    // default: 4096
	MaxConcurrent     int    // concurrent API calls, 0 = unlimited
	RequestsPerMinute int    // request pacing, 0 = unpaced
	RetainHistory     bool   // keep the conversation transcript across calls
	Logger            *slog.Logger
}

// Claude is a Generator backed by the Anthropic Messages API. Calls are
// bounded by an optional concurrency semaphore and paced by an optional
// rate limiter. Failed calls are not retried; transport faults propagate
// to the caller.
//
// With RetainHistory set, the instance keeps its own conversation
// transcript and every call extends it, so refinement prompts do not need
// to repeat the prior candidate.
type Claude struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	logger    *slog.Logger

	retainHistory bool
	mu            sync.Mutex
	history       []anthropic.MessageParam

	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

var _ Generator = (*Claude)(nil)
var _ HistoryRetainer = (*Claude)(nil)

// NewClaude creates a Claude-backed generator.
func NewClaude(cfg ClaudeConfig) (*Claude, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Claude{
		client:        &client,
		model:         model,
		maxTokens:     int64(maxTokens),
		sem:           sem,
		limiter:       limiter,
		logger:        logger,
		retainHistory: cfg.RetainHistory,
	}, nil
}

func (c *Claude) Name() string { return "claude/" + c.model }

// RetainsHistory reports whether this instance keeps its conversation
// transcript across calls.
func (c *Claude) RetainsHistory() bool { return c.retainHistory }

// Generate sends the messages to the Anthropic API and returns the
// assistant's reply as a single text message.
func (c *Claude) Generate(ctx context.Context, messages []Message, params *RequestParams) (*Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("claude: no input messages")
	}

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquiring API slot: %w", err)
		}
		defer c.sem.Release(1)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	model := c.model
	maxTokens := c.maxTokens
	if params != nil {
		if params.Model != "" {
			model = params.Model
		}
		if params.MaxTokens > 0 {
			maxTokens = int64(params.MaxTokens)
		}
	}

	turns := toAnthropicMessages(messages)

	var request []anthropic.MessageParam
	if c.retainHistory {
		c.mu.Lock()
		c.history = append(c.history, turns...)
		request = make([]anthropic.MessageParam, len(c.history))
		copy(request, c.history)
		c.mu.Unlock()
	} else {
		request = turns
	}

	newParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  request,
	}
	if params != nil && params.Temperature != nil {
		newParams.Temperature = anthropic.Float(*params.Temperature)
	}

	response, err := c.client.Messages.New(ctx, newParams)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	if c.retainHistory {
		c.mu.Lock()
		c.history = append(c.history, response.ToParam())
		c.mu.Unlock()
	}

	c.inputTokens.Add(response.Usage.InputTokens)
	c.outputTokens.Add(response.Usage.OutputTokens)

	c.logger.Debug("claude response",
		"model", model,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens)

	msg := AssistantText(responseText)
	return &msg, nil
}

// Usage returns cumulative token usage across all calls on this instance.
func (c *Claude) Usage() (inputTokens, outputTokens int64) {
	return c.inputTokens.Load(), c.outputTokens.Load()
}

// ResetHistory clears the retained conversation transcript.
func (c *Claude) ResetHistory() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
		for _, p := range m.Parts {
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}
