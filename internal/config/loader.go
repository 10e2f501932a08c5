package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults filled in by [ApplyDefaults].
const (
	DefaultRequestTimeout       = 30 * time.Second
	DefaultMaxAttempts          = 3
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultMaxTokens            = 4096
	DefaultMaxDepth             = 15
	DefaultMaxMessages          = 40
	DefaultCacheTTL             = 5 * time.Minute
	DefaultWatchInterval        = 5 * time.Second
	DefaultEmbeddingDimensions  = 1536
	DefaultTopK                 = 1
	DefaultLogMaxSizeMB         = 100
)

// ValidProviderNames lists known provider names per kind. [Validate] warns
// about names not listed.
var ValidProviderNames = map[string][]string{
	"llm":        {"anthropic", "openai", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads, expands, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r. Unknown keys are rejected. An empty
// document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves ${VAR} references in credentials and DSNs.
func expandSecrets(cfg *Config) {
	expand := func(s *string) {
		if strings.Contains(*s, "$") {
			*s = os.ExpandEnv(*s)
		}
	}
	entries := []*ProviderEntry{&cfg.Providers.LLM, &cfg.Providers.Embeddings}
	for i := range cfg.Providers.LLMFallbacks {
		entries = append(entries, &cfg.Providers.LLMFallbacks[i])
	}
	for _, e := range entries {
		expand(&e.APIKey)
		expand(&e.BaseURL)
	}
	expand(&cfg.Catalogue.PostgresDSN)
	expand(&cfg.Reference.PostgresDSN)
}

// ApplyDefaults fills zero values. It does not override explicit settings.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.LogFile != "" && s.LogMaxSizeMB == 0 {
		s.LogMaxSizeMB = DefaultLogMaxSizeMB
	}

	c := &cfg.Conversation
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = DefaultMaxMessages
	}

	cat := &cfg.Catalogue
	if cat.CacheTTL == 0 {
		cat.CacheTTL = DefaultCacheTTL
	}
	if cat.File != "" && cat.WatchInterval == 0 {
		cat.WatchInterval = DefaultWatchInterval
	}

	ref := &cfg.Reference
	if ref.PostgresDSN != "" && ref.EmbeddingDimensions == 0 {
		ref.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if ref.TopK == 0 {
		ref.TopK = DefaultTopK
	}
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if !cfg.Server.LogFormat.IsValid() {
		add("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat)
	}
	if cfg.Server.LogMaxSizeMB < 0 || cfg.Server.LogMaxBackups < 0 || cfg.Server.LogMaxAgeDays < 0 {
		add("server log rotation settings must not be negative")
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			add("providers.llm_fallbacks[%d].name is required", i)
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		add("providers.llm_fallbacks requires providers.llm")
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	c := cfg.Conversation
	for name, v := range map[string]int{
		"max_tokens":   c.MaxTokens,
		"max_attempts": c.MaxAttempts,
		"max_depth":    c.MaxDepth,
		"max_messages": c.MaxMessages,
	} {
		if v < 0 {
			add("conversation.%s must not be negative, got %d", name, v)
		}
	}
	if c.RequestTimeout < 0 || c.RetryInitialInterval < 0 || c.RunDeadline < 0 {
		add("conversation durations must not be negative")
	}

	if cfg.Catalogue.File != "" && cfg.Catalogue.PostgresDSN != "" {
		add("catalogue.file and catalogue.postgres_dsn are mutually exclusive")
	}
	if cfg.Catalogue.CacheTTL < 0 || cfg.Catalogue.WatchInterval < 0 {
		add("catalogue durations must not be negative")
	}

	ref := cfg.Reference
	if ref.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		add("reference.postgres_dsn requires providers.embeddings")
	}
	if ref.EmbeddingDimensions < 0 {
		add("reference.embedding_dimensions must not be negative, got %d", ref.EmbeddingDimensions)
	}
	if ref.TopK < 0 {
		add("reference.top_k must not be negative, got %d", ref.TopK)
	}
	if ref.MaxDistance < 0 || ref.MaxDistance > 2 {
		add("reference.max_distance %.3f is out of range [0, 2]", ref.MaxDistance)
	}

	return errors.Join(errs...)
}

// validateProviderName warns when name is set but not a known provider.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if known, ok := ValidProviderNames[kind]; ok && !slices.Contains(known, name) {
		slog.Warn("unknown provider name, may be a typo or a third-party provider",
			"kind", kind,
			"name", name,
			"known", known,
		)
	}
}
