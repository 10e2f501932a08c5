package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/odab/pkg/provider/embeddings"
)

// ErrNoReference is returned when no indexed problem is close enough.
var ErrNoReference = errors.New("reference: no matching problem")

// DefaultTopK is the number of candidates fetched per lookup.
const DefaultTopK = 1

// Retriever embeds problem text and looks it up in an [Index].
type Retriever struct {
	embedder    embeddings.Provider
	index       Index
	topK        int
	maxDistance float64
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets how many candidates are fetched. Values below 1 are ignored.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMaxDistance rejects matches farther than d. Zero disables the cut-off.
func WithMaxDistance(d float64) RetrieverOption {
	return func(r *Retriever) { r.maxDistance = d }
}

// NewRetriever returns a Retriever over index.
func NewRetriever(embedder embeddings.Provider, index Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, index: index, topK: DefaultTopK}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Lookup returns the closest indexed problem for text, or [ErrNoReference].
func (r *Retriever) Lookup(ctx context.Context, text string) (Match, error) {
	if strings.TrimSpace(text) == "" {
		return Match{}, ErrNoReference
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return Match{}, fmt.Errorf("reference: embed query: %w", err)
	}
	matches, err := r.index.Nearest(ctx, vec, r.topK)
	if err != nil {
		return Match{}, err
	}
	if len(matches) == 0 {
		return Match{}, ErrNoReference
	}
	best := matches[0]
	if r.maxDistance > 0 && best.Distance > r.maxDistance {
		slog.Debug("reference: nearest problem too far", "id", best.ID, "distance", best.Distance)
		return Match{}, ErrNoReference
	}
	return best, nil
}

// IndexAll embeds every problem in one batch and stores it. It stops at the
// first store failure and returns how many were indexed.
func (r *Retriever) IndexAll(ctx context.Context, problems []Problem) (int, error) {
	if len(problems) == 0 {
		return 0, nil
	}
	texts := make([]string, len(problems))
	for i, p := range problems {
		texts[i] = p.Text
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("reference: embed problems: %w", err)
	}
	if len(vecs) != len(problems) {
		return 0, fmt.Errorf("reference: embed problems: got %d vectors for %d problems", len(vecs), len(problems))
	}
	for i, p := range problems {
		p.Embedding = vecs[i]
		if err := r.index.Index(ctx, p); err != nil {
			return i, err
		}
	}
	return len(problems), nil
}

// Augment builds the user text for a solve run that may draw on ref.
func Augment(problem string, ref Problem) string {
	var b strings.Builder
	b.WriteString("Solve the following problem step by step.\n")
	b.WriteString("Problem:\n")
	b.WriteString(problem)
	b.WriteString("\n\nA similar problem was found in the reference database. Use it if it helps.\n")
	b.WriteString("Reference problem:\n")
	b.WriteString(ref.Text)
	b.WriteString("\n")
	for i, step := range ref.Steps {
		fmt.Fprintf(&b, "Reference step %d: %s\n", i+1, step)
	}
	if ref.Answer != "" {
		fmt.Fprintf(&b, "Reference answer: %s\n", ref.Answer)
	}
	return b.String()
}
