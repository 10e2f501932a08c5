// Package config provides the configuration schema, loader and provider
// registry for odab.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration, usually loaded with [Load].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	Catalogue    CatalogueConfig    `yaml:"catalogue"`
	Reference    ReferenceConfig    `yaml:"reference"`
	MCP          MCPConfig          `yaml:"mcp"`
}

// ServerConfig holds logging and the optional admin listener.
type ServerConfig struct {
	// ListenAddr enables the admin HTTP server (/metrics, /healthz, /readyz)
	// when set, e.g. ":9090".
	ListenAddr string `yaml:"listen_addr"`

	LogLevel  LogLevel  `yaml:"log_level"`
	LogFormat LogFormat `yaml:"log_format"`

	// LogFile additionally writes logs to a rotating file.
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// ProvidersConfig selects the model backends. Names are looked up in a
// [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary fails or its circuit
	// is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation, e.g. "anthropic".
	Name string `yaml:"name"`

	// APIKey may reference an environment variable as "${NAME}".
	APIKey string `yaml:"api_key"`

	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values.
	Options map[string]any `yaml:"options"`
}

// ConversationConfig tunes the orchestrator.
type ConversationConfig struct {
	// Model overrides providers.llm.model for every request.
	Model string `yaml:"model"`

	MaxTokens            int           `yaml:"max_tokens"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxAttempts          int           `yaml:"max_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	MaxDepth             int           `yaml:"max_depth"`
	MaxMessages          int           `yaml:"max_messages"`

	// RunDeadline bounds a whole run. Zero means no deadline.
	RunDeadline time.Duration `yaml:"run_deadline"`

	SystemPrompt string `yaml:"system_prompt"`
}

// CatalogueConfig selects where concepts come from. At most one of File and
// PostgresDSN may be set.
type CatalogueConfig struct {
	File          string        `yaml:"file"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// ReferenceConfig enables the similar-problem lookup.
type ReferenceConfig struct {
	PostgresDSN         string `yaml:"postgres_dsn"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	TopK                int    `yaml:"top_k"`

	// MaxDistance drops matches with a larger cosine distance. Zero keeps
	// every match.
	MaxDistance float64 `yaml:"max_distance"`
}

// MCPConfig describes the implementation advertised by "odab mcp".
type MCPConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}
