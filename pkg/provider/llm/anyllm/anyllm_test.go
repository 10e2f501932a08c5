package anyllm

import (
	"errors"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage_UserText(t *testing.T) {
	m := types.Message{
		Role: types.RoleUser,
		Content: []types.ContentBlock{
			types.TextBlock{Text: "line one"},
			types.TextBlock{Text: "line two"},
		},
	}
	got, err := convertMessage(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].Role != "user" {
		t.Errorf("expected role user, got %q", got[0].Role)
	}
	if got[0].ContentString() != "line one\nline two" {
		t.Errorf("unexpected content %q", got[0].ContentString())
	}
}

// TestConvertMessage_ToolResults checks that results become tool messages ahead of text.
func TestConvertMessage_ToolResults(t *testing.T) {
	m := types.Message{
		Role: types.RoleUser,
		Content: []types.ContentBlock{
			types.ToolResultBlock{ToolUseID: "call_1", Content: `{"thoughtNumber":1}`},
			types.TextBlock{Text: "continue"},
		},
	}
	got, err := convertMessage(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != "tool" || got[0].ToolCallID != "call_1" {
		t.Errorf("first message = role %q id %q, want tool/call_1", got[0].Role, got[0].ToolCallID)
	}
	if got[1].Role != "user" {
		t.Errorf("second message role = %q, want user", got[1].Role)
	}
}

func TestConvertMessage_AssistantWithToolUse(t *testing.T) {
	m := types.Message{
		Role: types.RoleAssistant,
		Content: []types.ContentBlock{
			types.ToolUseBlock{ID: "call_1", Name: "sequentialThinking", Input: map[string]any{"thought": "x"}},
		},
	}
	got, err := convertMessage(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0].ToolCalls) != 1 {
		t.Fatalf("expected one message with one tool call, got %+v", got)
	}
	tc := got[0].ToolCalls[0]
	if tc.ID != "call_1" {
		t.Errorf("expected ID call_1, got %q", tc.ID)
	}
	if tc.Function.Name != "sequentialThinking" {
		t.Errorf("expected function name sequentialThinking, got %q", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"thought":"x"}` {
		t.Errorf("unexpected arguments: %q", tc.Function.Arguments)
	}
	if tc.Type != "function" {
		t.Errorf("expected type function, got %q", tc.Type)
	}
}

func TestConvertMessage_ImageRejected(t *testing.T) {
	m := types.Message{
		Role:    types.RoleUser,
		Content: []types.ContentBlock{types.ImageBlock{MIMEType: "image/png", Data: "aGVsbG8="}},
	}
	_, err := convertMessage(m)
	if !errors.Is(err, llm.ErrUnsupportedContent) {
		t.Fatalf("err = %v, want ErrUnsupportedContent", err)
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(types.Message{Role: "system"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "llama3"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages:     []types.Message{types.NewUserText("hi")},
		MaxTokens:    50,
		Tools:        []types.ToolDefinition{{Name: "sequentialThinking"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 || params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Fatalf("expected system message first, got %+v", params.Messages)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 50 {
		t.Errorf("MaxTokens not forwarded")
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "sequentialThinking" {
		t.Errorf("tools not forwarded: %+v", params.Tools)
	}
	if params.Model != "llama3" {
		t.Errorf("Model = %q, want llama3", params.Model)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model  string
		window int
		tools  bool
	}{
		{"claude-3-5-sonnet-latest", 200_000, true},
		{"gemini-1.5-pro", 2_097_152, true},
		{"gemini-2.0-flash", 1_048_576, true},
		{"deepseek-chat", 64_000, true},
		{"mistral-large", 32_000, true},
		{"o1-mini", 128_000, false},
		{"llama3", 128_000, true},
		{"GEMINI-1.5-PRO", 2_097_152, true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.window {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.window)
			}
			if caps.SupportsToolCalling != tt.tools {
				t.Errorf("SupportsToolCalling = %v, want %v", caps.SupportsToolCalling, tt.tools)
			}
			if caps.SupportsVision {
				t.Error("SupportsVision = true, want false for text-only adapter")
			}
		})
	}
}

func TestStopReason(t *testing.T) {
	if got := stopReason("tool_calls"); got != types.StopToolUse {
		t.Errorf("stopReason(tool_calls) = %q", got)
	}
	if got := stopReason("stop"); got != types.StopEndTurn {
		t.Errorf("stopReason(stop) = %q", got)
	}
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name  string
		model string
		opts  []anyllmlib.Option
	}{
		{"openai", "gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"anthropic", "claude-3-5-sonnet-latest", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"ollama", "llama3", nil},
		{"llamacpp", "llama3", nil},
		{"llamafile", "llama3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.name, tt.model, tt.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.model != tt.model {
				t.Errorf("model = %q, want %q", p.model, tt.model)
			}
		})
	}
}

func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
