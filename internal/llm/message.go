// Package llm defines the narrow capability contracts the refinement loop
// is built on: a Generator that produces candidate responses, and the
// message/parameter types that cross that boundary. Concrete backends
// (Claude, the passthrough test double) live here too.
package llm

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is a single content item within a message. Only text parts are
// supported; multimodal content is out of scope.
type Part struct {
	Text string
}

// Message is a role plus an ordered sequence of content parts. A message
// with a single part is the common case; multi-part messages arise when a
// caller assembles content from several sources.
type Message struct {
	Role  Role
	Parts []Part
}

// UserText builds a single-part user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// AssistantText builds a single-part assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{{Text: text}}}
}

// Text renders the message for prompt embedding, one part per line.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	parts := make([]string, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}
