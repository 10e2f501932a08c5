// Package types defines the shared data types that flow between odab
// components: conversation messages, their content blocks, and tool
// descriptors offered to a model.
//
// These types are intentionally free of any provider SDK so that backends,
// the orchestrator, and tools can exchange them without import cycles.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a [Message].
type Role string

const (
	// RoleUser marks caller-authored turns, including tool results.
	RoleUser Role = "user"

	// RoleAssistant marks model-authored turns.
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// BlockKind discriminates the variants of [ContentBlock].
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindImage      BlockKind = "image"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
)

// ContentBlock is one element of a message's content. The set of
// implementations is closed: [TextBlock], [ImageBlock], [ToolUseBlock] and
// [ToolResultBlock].
type ContentBlock interface {
	// Kind returns the variant discriminator.
	Kind() BlockKind

	contentBlock()
}

// TextBlock is plain text.
type TextBlock struct {
	Text string
}

// ImageBlock is an inline image. Data holds the base64-encoded payload and
// MIMEType its declared media type (e.g. "image/png").
type ImageBlock struct {
	MIMEType string
	Data     string
}

// ToolUseBlock is a model request to invoke the tool Name with Input.
type ToolUseBlock struct {
	// ID is the provider-assigned identifier that the matching
	// [ToolResultBlock] must echo.
	ID string

	// Name is the requested tool name.
	Name string

	// Input holds the decoded JSON arguments.
	Input map[string]any
}

// ToolResultBlock answers a [ToolUseBlock].
type ToolResultBlock struct {
	// ToolUseID correlates this result with the tool use that produced it.
	ToolUseID string

	// Content is the JSON-encoded result value.
	Content string

	// IsError marks results that report a failure to the model.
	IsError bool
}

func (TextBlock) Kind() BlockKind       { return KindText }
func (ImageBlock) Kind() BlockKind      { return KindImage }
func (ToolUseBlock) Kind() BlockKind    { return KindToolUse }
func (ToolResultBlock) Kind() BlockKind { return KindToolResult }

func (TextBlock) contentBlock()       {}
func (ImageBlock) contentBlock()      {}
func (ToolUseBlock) contentBlock()    {}
func (ToolResultBlock) contentBlock() {}

// InputJSON returns the tool input encoded as a JSON object. A nil input
// encodes as "{}".
func (b ToolUseBlock) InputJSON() (string, error) {
	if b.Input == nil {
		return "{}", nil
	}
	data, err := json.Marshal(b.Input)
	if err != nil {
		return "", fmt.Errorf("types: encode input of tool use %q: %w", b.ID, err)
	}
	return string(data), nil
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// NewUserText returns a user message holding a single text block.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock{Text: text}}}
}

// Text concatenates the text blocks of m, separated by newlines.
func (m Message) Text() string {
	return JoinText(m.Content)
}

// ToolUses returns the tool-use blocks of m in order.
func (m Message) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range m.Content {
		if tu, ok := b.(ToolUseBlock); ok {
			out = append(out, tu)
		}
	}
	return out
}

// JoinText concatenates the text blocks of blocks, separated by newlines.
func JoinText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if tb, ok := b.(TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ValidateHistory checks that every tool result in msgs references a tool use
// from a strictly earlier assistant message.
func ValidateHistory(msgs []Message) error {
	seen := make(map[string]struct{})
	for i, m := range msgs {
		if !m.Role.IsValid() {
			return fmt.Errorf("types: message %d: invalid role %q", i, m.Role)
		}
		for _, b := range m.Content {
			if tr, ok := b.(ToolResultBlock); ok {
				if _, ok := seen[tr.ToolUseID]; !ok {
					return fmt.Errorf("types: message %d: tool result %q has no earlier tool use", i, tr.ToolUseID)
				}
			}
		}
		// Tool uses become referenceable only from the next message on.
		if m.Role == RoleAssistant {
			for _, tu := range m.ToolUses() {
				seen[tu.ID] = struct{}{}
			}
		}
	}
	return nil
}

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"

	// StopError marks a synthetic response produced after a transport failure.
	StopError StopReason = "error"
)

// ToolDefinition describes a tool that can be offered to a model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in model prompts).
	Description string

	// Parameters is the JSON Schema object describing the tool's input.
	Parameters map[string]any
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native tool calling support.
	SupportsToolCalling bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
