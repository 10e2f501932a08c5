// Package embeddings defines the Provider interface for text embedding
// backends. Vectors feed the reference-problem search.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider maps text to dense vectors. Every vector returned by one Provider
// has length Dimensions().
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order. On error the
	// whole result is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length.
	Dimensions() int

	// ModelID returns the model identifier, e.g. "text-embedding-3-small".
	ModelID() string
}
