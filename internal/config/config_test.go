package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/odab/internal/config"
	"github.com/MrWong99/odab/pkg/provider/embeddings"
	embmock "github.com/MrWong99/odab/pkg/provider/embeddings/mock"
	"github.com/MrWong99/odab/pkg/provider/llm"
	llmmock "github.com/MrWong99/odab/pkg/provider/llm/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  log_format: json
  log_file: /var/log/odab.log

providers:
  llm:
    name: anthropic
    api_key: ${ODAB_TEST_KEY}
    model: claude-sonnet-4-5
  llm_fallbacks:
    - name: openai
      api_key: sk-test
      model: gpt-4o
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-small

conversation:
  max_tokens: 2048
  request_timeout: 45s
  max_depth: 10
  run_deadline: 5m

catalogue:
  file: concepts.yaml

reference:
  postgres_dsn: postgres://localhost/odab
  top_k: 3
  max_distance: 0.4

mcp:
  name: my-thinking
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Setenv("ODAB_TEST_KEY", "sk-ant-secret")

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	want := &config.Config{
		Server: config.ServerConfig{
			ListenAddr:   ":9090",
			LogLevel:     config.LogDebug,
			LogFormat:    config.LogFormatJSON,
			LogFile:      "/var/log/odab.log",
			LogMaxSizeMB: config.DefaultLogMaxSizeMB,
		},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "anthropic", APIKey: "sk-ant-secret", Model: "claude-sonnet-4-5"},
			LLMFallbacks: []config.ProviderEntry{
				{Name: "openai", APIKey: "sk-test", Model: "gpt-4o"},
			},
			Embeddings: config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "text-embedding-3-small"},
		},
		Conversation: config.ConversationConfig{
			MaxTokens:            2048,
			RequestTimeout:       45 * time.Second,
			MaxAttempts:          config.DefaultMaxAttempts,
			RetryInitialInterval: config.DefaultRetryInitialInterval,
			MaxDepth:             10,
			MaxMessages:          config.DefaultMaxMessages,
			RunDeadline:          5 * time.Minute,
		},
		Catalogue: config.CatalogueConfig{
			File:          "concepts.yaml",
			CacheTTL:      config.DefaultCacheTTL,
			WatchInterval: config.DefaultWatchInterval,
		},
		Reference: config.ReferenceConfig{
			PostgresDSN:         "postgres://localhost/odab",
			EmbeddingDimensions: config.DefaultEmbeddingDimensions,
			TopK:                3,
			MaxDistance:         0.4,
		},
		MCP: config.MCPConfig{Name: "my-thinking"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Conversation.MaxDepth != config.DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", cfg.Conversation.MaxDepth, config.DefaultMaxDepth)
	}
	if cfg.Catalogue.WatchInterval != 0 {
		t.Errorf("WatchInterval = %v, want 0 without a catalogue file", cfg.Catalogue.WatchInterval)
	}
	if cfg.Reference.EmbeddingDimensions != 0 {
		t.Errorf("EmbeddingDimensions = %d, want 0 without a reference store", cfg.Reference.EmbeddingDimensions)
	}
}

func TestLoadFromReader_UnknownKey(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_levle: debug\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(t.TempDir() + "/nope.yaml")
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("err = %v, want an error naming the file", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	reg := config.NewRegistry()
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateEmbeddings err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Create(t *testing.T) {
	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterLLM("mock", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return &llmmock.Provider{}, nil
	})
	reg.RegisterEmbeddings("mock", func(config.ProviderEntry) (embeddings.Provider, error) {
		return &embmock.Provider{}, nil
	})

	entry := config.ProviderEntry{Name: "mock", Model: "m1"}
	if _, err := reg.CreateLLM(entry); err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory got model %q, want m1", gotEntry.Model)
	}
	if _, err := reg.CreateEmbeddings(entry); err != nil {
		t.Fatalf("CreateEmbeddings: %v", err)
	}
	if diff := cmp.Diff([]string{"mock"}, reg.LLMNames()); diff != "" {
		t.Errorf("LLMNames (-want +got):\n%s", diff)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterLLM("bad", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "bad"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
