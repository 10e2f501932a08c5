// Package anthropic provides an LLM provider backed by the Anthropic Messages API.
//
// It is the primary backend for odab: it supports inline images and native
// tool use, which the problem-solving conversation relies on.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// DefaultModel is used when New is called with an empty model.
const DefaultModel = "claude-3-5-sonnet-20240620"

// DefaultMaxTokens is used when a request does not set MaxTokens. The
// Messages API requires an explicit budget.
const DefaultMaxTokens = 4000

// Ensure Provider implements the llm.Provider interface.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client sdk.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout. Callers normally bound requests
// through the context instead.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Anthropic Provider. If model is empty, DefaultModel is
// used. SDK-level retries are disabled: retrying is the caller's concern.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
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
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: sdk.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages: %w", err)
	}
	return convertResponse(msg)
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

// modelCapabilities returns ModelCapabilities for known Claude model names.
func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		ContextWindow:       200_000,
		MaxOutputTokens:     8_192,
		SupportsToolCalling: true,
		SupportsVision:      true,
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude-3-opus"), strings.Contains(lower, "claude-3-haiku"):
		caps.MaxOutputTokens = 4_096
	case strings.Contains(lower, "claude-3-7-sonnet"):
		caps.MaxOutputTokens = 64_000
	case strings.Contains(lower, "claude-sonnet-4"), strings.Contains(lower, "claude-opus-4"):
		caps.MaxOutputTokens = 32_000
	}
	return caps
}

// buildParams converts a CompletionRequest into Anthropic SDK params.
func (p *Provider) buildParams(req llm.CompletionRequest) (sdk.MessageNewParams, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, msg)
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, convertTool(td))
	}
	return params, nil
}

// convertMessage converts a types.Message to an Anthropic message param.
func convertMessage(m types.Message) (sdk.MessageParam, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
	for _, b := range m.Content {
		switch v := b.(type) {
		case types.TextBlock:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case types.ImageBlock:
			blocks = append(blocks, sdk.NewImageBlockBase64(v.MIMEType, v.Data))
		case types.ToolUseBlock:
			input := v.Input
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, sdk.NewToolUseBlock(v.ID, input, v.Name))
		case types.ToolResultBlock:
			blocks = append(blocks, sdk.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		default:
			return sdk.MessageParam{}, fmt.Errorf("%w: %T", llm.ErrUnsupportedContent, b)
		}
	}

	switch m.Role {
	case types.RoleUser:
		return sdk.NewUserMessage(blocks...), nil
	case types.RoleAssistant:
		return sdk.NewAssistantMessage(blocks...), nil
	default:
		return sdk.MessageParam{}, fmt.Errorf("anthropic: unknown message role %q", m.Role)
	}
}

// convertTool converts a tool definition into an Anthropic custom tool. The
// JSON Schema's "properties" and "required" keys map onto the SDK's input
// schema; any other keys are forwarded verbatim.
func convertTool(td types.ToolDefinition) sdk.ToolUnionParam {
	schema := sdk.ToolInputSchemaParam{}
	for k, v := range td.Parameters {
		switch k {
		case "type":
			// Always "object"; the SDK sets it.
		case "properties":
			schema.Properties = v
		case "required":
			schema.Required = stringSlice(v)
		default:
			if schema.ExtraFields == nil {
				schema.ExtraFields = map[string]any{}
			}
			schema.ExtraFields[k] = v
		}
	}

	tool := &sdk.ToolParam{
		Name:        td.Name,
		InputSchema: schema,
	}
	if td.Description != "" {
		tool.Description = sdk.String(td.Description)
	}
	return sdk.ToolUnionParam{OfTool: tool}
}

// stringSlice accepts []string or []any of strings.
func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// convertResponse maps an Anthropic message onto a CompletionResponse. Text
// and tool-use blocks are kept; other block types carry nothing the
// orchestrator can act on and are dropped.
func convertResponse(msg *sdk.Message) (*llm.CompletionResponse, error) {
	resp := &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		StopReason: types.StopReason(msg.StopReason),
		Model:      string(msg.Model),
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Content = append(resp.Content, types.TextBlock{Text: v.Text})
		case sdk.ToolUseBlock:
			input := map[string]any{}
			if len(v.Input) > 0 {
				if err := json.Unmarshal(v.Input, &input); err != nil {
					return nil, fmt.Errorf("anthropic: decode input of tool use %q: %w", v.ID, err)
				}
			}
			resp.Content = append(resp.Content, types.ToolUseBlock{ID: v.ID, Name: v.Name, Input: input})
		default:
			slog.Debug("anthropic: dropping unsupported response block", "type", block.Type)
		}
	}
	return resp, nil
}
