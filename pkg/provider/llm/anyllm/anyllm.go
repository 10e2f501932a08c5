// Package anyllm adapts github.com/mozilla-ai/any-llm-go to llm.Provider so the
// orchestrator can run against Gemini, Ollama, DeepSeek, Mistral, Groq and
// local llama.cpp/llamafile servers.
//
// The unified any-llm message model carries plain-text content only, so image
// blocks are rejected with [llm.ErrUnsupportedContent]. Use the anthropic or
// openai providers for image extraction.
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// Backends lists the provider names accepted by [New].
var Backends = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider backed by the named any-llm backend (one of
// [Backends]). Without an API key option the backend falls back to its usual
// environment variable, e.g. GEMINI_API_KEY.
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, name: strings.ToLower(providerName), model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: %s", providerName, strings.Join(Backends, ", "))
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anyllm: build params: %w", err)
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		StopReason: stopReason(string(choice.FinishReason)),
		Model:      p.model,
	}
	if text := choice.Message.ContentString(); text != "" {
		result.Content = append(result.Content, types.TextBlock{Text: text})
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if args := strings.TrimSpace(tc.Function.Arguments); args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return nil, fmt.Errorf("anyllm: decode arguments of tool call %q: %w", tc.ID, err)
			}
		}
		result.Content = append(result.Content, types.ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return result, nil
}

func stopReason(finish string) types.StopReason {
	switch finish {
	case "stop":
		return types.StopEndTurn
	case "tool_calls":
		return types.StopToolUse
	case "length":
		return types.StopMaxTokens
	default:
		return types.StopReason(finish)
	}
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) (anyllmlib.CompletionParams, error) {
	var messages []anyllmlib.Message
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		converted, err := convertMessage(m)
		if err != nil {
			return anyllmlib.CompletionParams{}, err
		}
		messages = append(messages, converted...)
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	params := anyllmlib.CompletionParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	return params, nil
}

// convertMessage flattens a content-block message into the OpenAI-style
// message list any-llm expects: tool results become "tool" messages and the
// remaining text is joined into a single message.
func convertMessage(m types.Message) ([]anyllmlib.Message, error) {
	switch m.Role {
	case types.RoleUser:
		var (
			out  []anyllmlib.Message
			text []string
		)
		for _, b := range m.Content {
			switch v := b.(type) {
			case types.TextBlock:
				text = append(text, v.Text)
			case types.ToolResultBlock:
				out = append(out, anyllmlib.Message{
					Role:       "tool",
					Content:    v.Content,
					ToolCallID: v.ToolUseID,
				})
			default:
				return nil, fmt.Errorf("%w: %T", llm.ErrUnsupportedContent, b)
			}
		}
		if len(text) > 0 {
			out = append(out, anyllmlib.Message{Role: "user", Content: strings.Join(text, "\n")})
		}
		return out, nil

	case types.RoleAssistant:
		msg := anyllmlib.Message{Role: "assistant"}
		var text []string
		for _, b := range m.Content {
			switch v := b.(type) {
			case types.TextBlock:
				text = append(text, v.Text)
			case types.ToolUseBlock:
				args, err := v.InputJSON()
				if err != nil {
					return nil, err
				}
				msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
					ID:   v.ID,
					Type: "function",
					Function: anyllmlib.FunctionCall{
						Name:      v.Name,
						Arguments: args,
					},
				})
			default:
				return nil, fmt.Errorf("%w: %T", llm.ErrUnsupportedContent, b)
			}
		}
		msg.Content = strings.Join(text, "\n")
		return []anyllmlib.Message{msg}, nil

	default:
		return nil, fmt.Errorf("anyllm: unknown message role %q", m.Role)
	}
}

// modelCapabilities returns ModelCapabilities for the model families reached
// through any-llm. Vision is always reported false since this adapter sends
// text only.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		ContextWindow:       128_000,
		MaxOutputTokens:     4_096,
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		caps.ContextWindow = 200_000
		caps.MaxOutputTokens = 8_192
	case strings.Contains(lower, "gemini-1.5-pro"):
		caps.ContextWindow = 2_097_152
		caps.MaxOutputTokens = 8_192
	case strings.HasPrefix(lower, "gemini"):
		caps.ContextWindow = 1_048_576
		caps.MaxOutputTokens = 8_192
	case strings.HasPrefix(lower, "deepseek"):
		caps.ContextWindow = 64_000
		caps.MaxOutputTokens = 8_192
	case strings.HasPrefix(lower, "mistral"), strings.HasPrefix(lower, "mixtral"):
		caps.ContextWindow = 32_000
	case strings.HasPrefix(lower, "o1-mini"):
		caps.SupportsToolCalling = false
	}
	return caps
}
