// Package openai provides an LLM provider backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		StopReason: stopReason(choice.FinishReason),
		Model:      resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if choice.Message.Content != "" {
		result.Content = append(result.Content, types.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if args := strings.TrimSpace(tc.Function.Arguments); args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return nil, fmt.Errorf("openai: decode arguments of tool call %q: %w", tc.ID, err)
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

// stopReason maps an OpenAI finish reason onto the shared vocabulary.
func stopReason(finish string) types.StopReason {
	switch finish {
	case "stop":
		return types.StopEndTurn
	case "tool_calls", "function_call":
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

// modelCapabilities returns ModelCapabilities for known OpenAI model names.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		ContextWindow:       128_000,
		MaxOutputTokens:     4_096,
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"), strings.HasPrefix(lower, "gpt-4.1"):
		caps.MaxOutputTokens = 16_384
		caps.SupportsVision = true
	case strings.HasPrefix(lower, "gpt-4-turbo"):
		caps.SupportsVision = true
	case strings.HasPrefix(lower, "gpt-4"):
		caps.ContextWindow = 8_192
	case strings.HasPrefix(lower, "gpt-3.5-turbo"):
		caps.ContextWindow = 16_385
	case strings.HasPrefix(lower, "o1-mini"):
		caps.MaxOutputTokens = 65_536
		caps.SupportsToolCalling = false
	case strings.HasPrefix(lower, "o3-mini"):
		caps.ContextWindow = 200_000
		caps.MaxOutputTokens = 100_000
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		caps.ContextWindow = 200_000
		caps.MaxOutputTokens = 100_000
		caps.SupportsVision = true
	}
	return caps
}

// buildParams converts a CompletionRequest into OpenAI SDK params.
func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}

	for _, m := range req.Messages {
		converted, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, converted...)
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}

	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}

	return params, nil
}

// convertMessage converts a types.Message into one or more OpenAI message
// params. Chat Completions carries each tool result in its own "tool"
// message, so a user message holding N results expands to N tool messages
// followed by a user message for any remaining text or image blocks.
func convertMessage(m types.Message) ([]oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case types.RoleUser:
		var (
			out   []oai.ChatCompletionMessageParamUnion
			parts []oai.ChatCompletionContentPartUnionParam
		)
		for _, b := range m.Content {
			switch v := b.(type) {
			case types.TextBlock:
				parts = append(parts, oai.TextContentPart(v.Text))
			case types.ImageBlock:
				parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
					URL: v.DataURL(),
				}))
			case types.ToolResultBlock:
				content := v.Content
				if v.IsError && content == "" {
					content = "error"
				}
				out = append(out, oai.ToolMessage(content, v.ToolUseID))
			default:
				return nil, fmt.Errorf("%w: %T in user message", llm.ErrUnsupportedContent, b)
			}
		}
		if len(parts) > 0 {
			out = append(out, oai.UserMessage(parts))
		}
		return out, nil

	case types.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		var text []string
		for _, b := range m.Content {
			switch v := b.(type) {
			case types.TextBlock:
				text = append(text, v.Text)
			case types.ToolUseBlock:
				args, err := v.InputJSON()
				if err != nil {
					return nil, fmt.Errorf("openai: encode tool use %q: %w", v.ID, err)
				}
				asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
					ID: v.ID,
					Function: oai.ChatCompletionMessageToolCallFunctionParam{
						Name:      v.Name,
						Arguments: args,
					},
				})
			default:
				return nil, fmt.Errorf("%w: %T in assistant message", llm.ErrUnsupportedContent, b)
			}
		}
		if len(text) > 0 {
			asst.Content.OfString = oai.String(strings.Join(text, "\n"))
		}
		return []oai.ChatCompletionMessageParamUnion{{OfAssistant: &asst}}, nil

	default:
		return nil, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}
