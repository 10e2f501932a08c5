// Package mock provides a test double for embeddings.Provider.
//
// By default Embed derives a deterministic vector from the text so tests can
// index and search without fixtures:
//
//	p := &mock.Provider{DimensionsValue: 4}
//	vec, _ := p.Embed(ctx, "2x + 3 = 7")
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/MrWong99/odab/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a scriptable embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Vectors maps a text to the vector returned for it. Texts not listed get
	// a hash-derived vector of length DimensionsValue.
	Vectors map[string][]float32

	// Err, if set, is returned by Embed and EmbedBatch.
	Err error

	DimensionsValue int
	ModelIDValue    string

	// Texts records every text embedded, in call order.
	Texts []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// Embedded returns a copy of the recorded texts.
func (p *Provider) Embedded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Texts...)
}

func (p *Provider) vector(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	n := p.DimensionsValue
	if n <= 0 {
		n = 4
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, n)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed>>40)/float32(1<<24) - 0.5
	}
	return v
}
