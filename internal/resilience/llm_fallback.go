package resilience

import (
	"context"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// LLMFallback is an [llm.Provider] that fails over from a primary backend to
// fallbacks, each guarded by its own breaker.
type LLMFallback struct {
	group *Group[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an LLMFallback preferring primary.
func NewLLMFallback(primaryName string, primary llm.Provider, cfg BreakerConfig) *LLMFallback {
	return &LLMFallback{group: NewGroup(primaryName, primary, cfg)}
}

// AddFallback appends a fallback backend.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.Add(name, p)
}

// Names returns the backend names in try order.
func (f *LLMFallback) Names() []string { return f.group.Names() }

// Complete returns the first successful completion. Once the request context
// is done no further backend is tried, so a timeout on the primary is reported
// as such.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's capabilities.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	return f.group.Primary().Capabilities()
}
