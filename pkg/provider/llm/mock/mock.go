// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the orchestrator sends correct
// CompletionRequests and to feed a controlled sequence of responses without a
// live LLM backend. Fields are safe to set before calling any method; mutating
// them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Script: []mock.Step{
//	        {Block: true},                              // first attempt times out
//	        {Response: mock.TextResponse("Hello!")},    // second attempt succeeds
//	    },
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// Step is one scripted outcome of Complete.
type Step struct {
	// Response is returned when Err is nil and Block is false.
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned instead of Response.
	Err error

	// Block makes Complete wait until ctx is done and return ctx.Err(). Use it
	// with a short request timeout to simulate a hung backend.
	Block bool
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is a copy of the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Complete consumes Script in order. Once the script is exhausted it returns
// CompleteResponse and CompleteErr.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Script is the ordered sequence of outcomes for successive calls.
	Script []Step

	// CompleteResponse is returned once Script is exhausted. May be nil.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned once Script is exhausted.
	CompleteErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns the next scripted outcome.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	recorded := req
	recorded.Messages = slices.Clone(req.Messages)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: recorded})

	step := Step{Response: p.CompleteResponse, Err: p.CompleteErr}
	if len(p.Script) > 0 {
		step = p.Script[0]
		p.Script = p.Script[1:]
	}
	p.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns the number of Complete invocations so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all call records. Configured responses are left unchanged.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// TextResponse builds an end-of-turn response holding a single text block.
func TextResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		Content:    []types.ContentBlock{types.TextBlock{Text: text}},
		StopReason: types.StopEndTurn,
	}
}

// ToolUseResponse builds a tool-use response holding only the given uses.
func ToolUseResponse(uses ...types.ToolUseBlock) *llm.CompletionResponse {
	content := make([]types.ContentBlock, 0, len(uses))
	for _, u := range uses {
		content = append(content, u)
	}
	return &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		Content:    content,
		StopReason: types.StopToolUse,
	}
}
