package llm

import "github.com/MrWong99/odab/pkg/types"

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Model overrides the provider's configured model when non-empty.
	Model string

	// Messages is the ordered conversation history.
	Messages []types.Message

	// Tools is the set of tool definitions offered to the model.
	Tools []types.ToolDefinition

	// MaxTokens caps the number of completion tokens. Zero means the provider
	// default.
	MaxTokens int

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// SystemPrompt is an optional instruction sent ahead of the history.
	SystemPrompt string
}

// CompletionResponse is one complete model turn.
type CompletionResponse struct {
	// Role is always [types.RoleAssistant] for model output.
	Role types.Role

	// Content holds the reply blocks in the order the model produced them.
	// Only [types.TextBlock] and [types.ToolUseBlock] appear here.
	Content []types.ContentBlock

	// StopReason explains why generation ended.
	StopReason types.StopReason

	// Model is the model identifier reported by the backend, if any.
	Model string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Text concatenates the text blocks of the response.
func (r *CompletionResponse) Text() string {
	if r == nil {
		return ""
	}
	return types.JoinText(r.Content)
}

// ToolUses returns the tool-use blocks of the response in order.
func (r *CompletionResponse) ToolUses() []types.ToolUseBlock {
	if r == nil {
		return nil
	}
	return types.Message{Content: r.Content}.ToolUses()
}
