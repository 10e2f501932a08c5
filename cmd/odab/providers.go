package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/odab/internal/config"
	"github.com/MrWong99/odab/internal/resilience"
	"github.com/MrWong99/odab/pkg/provider/embeddings"
	oaembed "github.com/MrWong99/odab/pkg/provider/embeddings/openai"
	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/provider/llm/anthropic"
	"github.com/MrWong99/odab/pkg/provider/llm/anyllm"
	"github.com/MrWong99/odab/pkg/provider/llm/openai"
)

// errNoLLM is returned by commands that need a model when none is configured.
var errNoLLM = errors.New("providers.llm is not configured")

// registerBuiltinProviders wires all built-in provider factories into reg.
// Anthropic and OpenAI use their native adapters, which support images. The
// remaining names go through any-llm.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("anthropic", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anthropic.Option
		if entry.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, anthropic.WithTimeout(entry.Timeout))
		}
		return anthropic.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range anyllm.Backends {
		if name == "anthropic" || name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// Ollama and other OpenAI-compatible servers are reached via base_url.
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oaembed.WithTimeout(entry.Timeout))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildLLM creates the primary model and, when fallbacks are configured,
// wraps it in a breaker-guarded failover chain. The returned name labels
// transport metrics.
func buildLLM(reg *config.Registry, p config.ProvidersConfig, log *slog.Logger) (llm.Provider, string, error) {
	if p.LLM.Name == "" {
		return nil, "", errNoLLM
	}
	primary, err := reg.CreateLLM(p.LLM)
	if err != nil {
		return nil, "", fmt.Errorf("create llm %q: %w", p.LLM.Name, err)
	}
	if len(p.LLMFallbacks) == 0 {
		return primary, p.LLM.Name, nil
	}

	fb := resilience.NewLLMFallback(p.LLM.Name, primary, resilience.BreakerConfig{Name: "llm"})
	for _, entry := range p.LLMFallbacks {
		prov, err := reg.CreateLLM(entry)
		if err != nil {
			if errors.Is(err, config.ErrProviderNotRegistered) {
				log.Warn("skipping unregistered llm fallback", "name", entry.Name)
				continue
			}
			return nil, "", fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, prov)
	}
	log.Debug("llm failover chain", "order", fb.Names())
	return fb, p.LLM.Name, nil
}

// buildEmbeddings creates the embeddings provider and checks that it yields
// vectors of the size the reference table was created with.
func buildEmbeddings(reg *config.Registry, entry config.ProviderEntry, dims int) (embeddings.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("providers.embeddings is not configured")
	}
	emb, err := reg.CreateEmbeddings(entry)
	if err != nil {
		return nil, fmt.Errorf("create embeddings %q: %w", entry.Name, err)
	}
	if dims > 0 && emb.Dimensions() != dims {
		return nil, fmt.Errorf("embeddings model %s yields %d dimensions, reference.embedding_dimensions is %d",
			emb.ModelID(), emb.Dimensions(), dims)
	}
	return emb, nil
}

// optString extracts a string value from provider options.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from provider options. YAML numbers decode as
// int, but float64 is accepted too.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
