package types

import (
	"encoding/json"
	"strings"
)

// Kind represents the direction of a turn
type Kind string

const (
	// KindRequest represents a turn produced by the user/tool side
	KindRequest Kind = "request"

	// KindResponse represents a turn produced by the model
	KindResponse Kind = "response"
)

// Turn represents one request or response unit in a conversation trajectory.
// A turn owns an ordered list of parts. Turns are treated as immutable values:
// every edit made by the compaction engine constructs a fresh turn.
type Turn struct {
	Kind  Kind   `json:"kind"`
	Parts []Part `json:"parts"`
}

// PartType represents the type of a part within a turn
type PartType string

const (
	// PartTypeText represents free text content
	PartTypeText PartType = "text"

	// PartTypeUserPrompt represents free text supplied by the user or
	// orchestrator, tagged as request-side
	PartTypeUserPrompt PartType = "user_prompt"

	// PartTypeSystemPrompt represents system prompt content
	PartTypeSystemPrompt PartType = "system_prompt"

	// PartTypeThinking represents a model thinking trace
	PartTypeThinking PartType = "thinking"

	// PartTypeRetryNotice represents a retry notice injected by the
	// orchestration loop
	PartTypeRetryNotice PartType = "retry_notice"

	// PartTypeToolCall represents a tool invocation emitted by a
	// response turn
	PartTypeToolCall PartType = "tool_call"

	// PartTypeToolReturn represents a tool result emitted by a request
	// turn, paired to a prior tool call by ID
	PartTypeToolReturn PartType = "tool_return"
)

// Part represents a typed fragment within a turn
type Part struct {
	Type PartType `json:"type"`

	// Text content for text, user_prompt, system_prompt, thinking and
	// retry_notice parts
	Text string `json:"text,omitempty"`

	// Tool call content
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`

	// Tool return content
	ToolContent string `json:"tool_content,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}

// NewTextTurn creates a response turn with a single text part.
func NewTextTurn(kind Kind, text string) Turn {
	if kind == KindRequest {
		return Turn{Kind: kind, Parts: []Part{{Type: PartTypeUserPrompt, Text: text}}}
	}
	return Turn{Kind: kind, Parts: []Part{{Type: PartTypeText, Text: text}}}
}

// Clone creates a deep copy of the turn.
func (t Turn) Clone() Turn {
	clone := Turn{Kind: t.Kind}
	if t.Parts == nil {
		return clone
	}
	clone.Parts = make([]Part, len(t.Parts))
	for i, p := range t.Parts {
		cp := p
		if p.ToolArgs != nil {
			cp.ToolArgs = make(json.RawMessage, len(p.ToolArgs))
			copy(cp.ToolArgs, p.ToolArgs)
		}
		clone.Parts[i] = cp
	}
	return clone
}

// Text returns the flattened textual content of the turn: all text-bearing
// parts plus tool-return payloads, in order. Tool call arguments are not
// included; cropping flattens only what can be re-emitted as plain text.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		switch p.Type {
		case PartTypeText, PartTypeUserPrompt, PartTypeSystemPrompt,
			PartTypeThinking, PartTypeRetryNotice:
			sb.WriteString(p.Text)
		case PartTypeToolReturn:
			sb.WriteString(p.ToolContent)
		}
	}
	return sb.String()
}

// HasToolReturns reports whether the turn contains at least one tool
// return part.
func (t Turn) HasToolReturns() bool {
	for _, p := range t.Parts {
		if p.Type == PartTypeToolReturn {
			return true
		}
	}
	return false
}

// ToolCallIDs returns the IDs of all tool call parts in the turn, in order.
func (t Turn) ToolCallIDs() []string {
	var ids []string
	for _, p := range t.Parts {
		if p.Type == PartTypeToolCall {
			ids = append(ids, p.ToolCallID)
		}
	}
	return ids
}

// Equal reports whether two turns have identical kind and parts.
func (t Turn) Equal(other Turn) bool {
	if t.Kind != other.Kind || len(t.Parts) != len(other.Parts) {
		return false
	}
	for i, p := range t.Parts {
		o := other.Parts[i]
		if p.Type != o.Type || p.Text != o.Text ||
			p.ToolCallID != o.ToolCallID || p.ToolName != o.ToolName ||
			p.ToolContent != o.ToolContent || p.IsError != o.IsError {
			return false
		}
		if string(p.ToolArgs) != string(o.ToolArgs) {
			return false
		}
	}
	return true
}

// EqualTurns reports whether two turn sequences are identical.
func EqualTurns(a, b []Turn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
