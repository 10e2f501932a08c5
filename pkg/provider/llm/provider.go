// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote model API (e.g., Anthropic Claude, OpenAI GPT-4o,
// or any backend reachable through any-llm-go) and exposes a uniform
// request/response exchange built on the content-block message model in
// [types]. The conversation orchestrator drives every backend through this
// interface without coupling to a specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/odab/pkg/types"
)

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must return promptly once ctx is cancelled. A Provider performs exactly one
// exchange per call: retries, timeouts and interpretation of the response
// belong to the caller.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails, if the backend cannot express
	// part of the request (e.g. an image for a text-only backend), or if ctx
	// is cancelled before the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the model this provider is
	// configured to use.
	Capabilities() types.ModelCapabilities
}
