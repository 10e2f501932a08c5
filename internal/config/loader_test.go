package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/odab/internal/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: "server.log_level",
		},
		{
			name:    "invalid log format",
			yaml:    "server:\n  log_format: xml\n",
			wantErr: "server.log_format",
		},
		{
			name:    "fallback without name",
			yaml:    "providers:\n  llm:\n    name: openai\n  llm_fallbacks:\n    - model: x\n",
			wantErr: "llm_fallbacks[0].name",
		},
		{
			name:    "fallback without primary",
			yaml:    "providers:\n  llm_fallbacks:\n    - name: openai\n",
			wantErr: "requires providers.llm",
		},
		{
			name:    "negative depth",
			yaml:    "conversation:\n  max_depth: -1\n",
			wantErr: "conversation.max_depth",
		},
		{
			name:    "two catalogue sources",
			yaml:    "catalogue:\n  file: a.yaml\n  postgres_dsn: postgres://x\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "reference without embeddings",
			yaml:    "reference:\n  postgres_dsn: postgres://x\n",
			wantErr: "requires providers.embeddings",
		},
		{
			name:    "max distance out of range",
			yaml:    "reference:\n  max_distance: 2.5\n",
			wantErr: "max_distance",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.LogLevel = "loud"
	cfg.Reference.TopK = -1

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.log_level", "reference.top_k"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err %q missing %q", err, want)
		}
	}
}

func TestApplyDefaults_KeepsExplicit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Conversation.MaxAttempts = 7
	cfg.Catalogue.File = "c.yaml"
	cfg.Catalogue.WatchInterval = 1
	config.ApplyDefaults(cfg)
	if cfg.Conversation.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", cfg.Conversation.MaxAttempts)
	}
	if cfg.Catalogue.WatchInterval != 1 {
		t.Errorf("WatchInterval = %v, want 1ns", cfg.Catalogue.WatchInterval)
	}
}

func TestValidProviderNames(t *testing.T) {
	for _, kind := range []string{"llm", "embeddings"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("no known names for %q", kind)
		}
	}
	// Unknown names only warn.
	if _, err := config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    name: my-proxy\n")); err != nil {
		t.Errorf("unknown provider name should not fail validation: %v", err)
	}
}
