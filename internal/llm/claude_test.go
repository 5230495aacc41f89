package llm

import (
	"testing"
)

func TestDefaultModel(t *testing.T) {
	t.Setenv("REFINERY_MODEL", "")
	if got := DefaultModel(); got != ModelSonnet {
		t.Errorf("DefaultModel() = %q, want %q", got, ModelSonnet)
	}

	t.Setenv("REFINERY_MODEL", ModelHaiku)
	if got := DefaultModel(); got != ModelHaiku {
		t.Errorf("DefaultModel() = %q, want env override %q", got, ModelHaiku)
	}
}

func TestNewClaudeDefaults(t *testing.T) {
	c, err := NewClaude(ClaudeConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClaude: %v", err)
	}
	if c.model != ModelSonnet {
		t.Errorf("model = %q", c.model)
	}
	if c.maxTokens != 4096 {
		t.Errorf("maxTokens = %d", c.maxTokens)
	}
	if c.sem != nil || c.limiter != nil {
		t.Error("semaphore and limiter should be nil when unconfigured")
	}
	if c.RetainsHistory() {
		t.Error("history retention should default off")
	}
	if c.Name() != "claude/"+ModelSonnet {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestNewClaudeRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClaude(ClaudeConfig{}); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestNewClaudeBoundedConcurrency(t *testing.T) {
	c, err := NewClaude(ClaudeConfig{
		APIKey:            "test-key",
		MaxConcurrent:     2,
		RequestsPerMinute: 60,
		RetainHistory:     true,
	})
	if err != nil {
		t.Fatalf("NewClaude: %v", err)
	}
	if c.sem == nil {
		t.Error("semaphore should be configured")
	}
	if c.limiter == nil {
		t.Error("rate limiter should be configured")
	}
	if !c.RetainsHistory() {
		t.Error("RetainsHistory() should report true")
	}
}

func TestClaudeUsageStartsZero(t *testing.T) {
	c, err := NewClaude(ClaudeConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClaude: %v", err)
	}
	in, out := c.Usage()
	if in != 0 || out != 0 {
		t.Errorf("Usage() = %d, %d, want zeros", in, out)
	}
}

func TestToAnthropicMessages(t *testing.T) {
	turns := toAnthropicMessages([]Message{
		UserText("question"),
		AssistantText("answer"),
	})
	if len(turns) != 2 {
		t.Fatalf("len = %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", turns[0].Role, turns[1].Role)
	}
}
