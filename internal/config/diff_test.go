package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/odab/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM:          config.ProviderEntry{Name: "anthropic", Model: "m"},
			LLMFallbacks: []config.ProviderEntry{{Name: "openai"}},
		},
		Catalogue: config.CatalogueConfig{File: "concepts.yaml"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   config.ConfigDiff
	}{
		{
			name:   "no changes",
			mutate: func(*config.Config) {},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			want:   config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug},
		},
		{
			name:   "catalogue ttl",
			mutate: func(c *config.Config) { c.Catalogue.CacheTTL = time.Minute },
			want:   config.ConfigDiff{CatalogueChanged: true},
		},
		{
			name:   "model",
			mutate: func(c *config.Config) { c.Providers.LLM.Model = "other" },
			want:   config.ConfigDiff{RestartRequired: true},
		},
		{
			name:   "fallback removed",
			mutate: func(c *config.Config) { c.Providers.LLMFallbacks = nil },
			want:   config.ConfigDiff{RestartRequired: true},
		},
		{
			name: "options ignored",
			mutate: func(c *config.Config) {
				c.Providers.LLM.Options = map[string]any{"temperature": 0.2}
			},
		},
		{
			name: "several",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogWarn
				c.Conversation.MaxDepth = 3
			},
			want: config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogWarn, RestartRequired: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)
			if got := config.Diff(old, updated); got != tt.want {
				t.Errorf("Diff = %+v, want %+v", got, tt.want)
			}
		})
	}
}
