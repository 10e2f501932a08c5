// Package openai provides an embeddings provider backed by the OpenAI API or
// any server exposing the OpenAI embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/odab/pkg/provider/embeddings"
)

// DefaultModel is used when New is given an empty model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider.
type Provider struct {
	client     oai.Client
	model      string
	dimensions int
	reduced    bool
}

type config struct {
	baseURL    string
	timeout    time.Duration
	dimensions int
}

// Option configures a Provider.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions asks the model for shortened vectors. Only the
// text-embedding-3 family honours it; the reference table column must match.
func WithDimensions(n int) Option {
	return func(c *config) { c.dimensions = n }
}

// New constructs a Provider. apiKey is required even for local servers that
// ignore it.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai embeddings: api key must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	p := &Provider{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		dimensions: modelDimensions(model),
	}
	if cfg.dimensions > 0 {
		p.dimensions = cfg.dimensions
		p.reduced = true
	}
	return p, nil
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)}, 1)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.embed(ctx, oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts}, len(texts))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	return vecs, nil
}

func (p *Provider) embed(ctx context.Context, input oai.EmbeddingNewParamsInputUnion, n int) ([][]float32, error) {
	params := oai.EmbeddingNewParams{Model: p.model, Input: input}
	if p.reduced {
		params.Dimensions = param.NewOpt(int64(p.dimensions))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(resp.Data))
	}
	out := make([][]float32, n)
	for _, e := range resp.Data {
		if e.Index < 0 || int(e.Index) >= n {
			return nil, fmt.Errorf("unexpected index %d", e.Index)
		}
		out[e.Index] = toFloat32(e.Embedding)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dimensions }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func modelDimensions(model string) int {
	if strings.Contains(strings.ToLower(model), "text-embedding-3-large") {
		return 3072
	}
	return 1536
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
