package main

import (
	"context"
	"fmt"

	"github.com/MrWong99/odab/internal/conversation"
	"github.com/MrWong99/odab/internal/health"
	"github.com/MrWong99/odab/internal/reference"
	"github.com/MrWong99/odab/internal/solver"
	"github.com/MrWong99/odab/internal/thinking"
	"github.com/MrWong99/odab/internal/tools"
	"github.com/MrWong99/odab/internal/tools/sequential"
	"github.com/MrWong99/odab/internal/transport"
)

// toolRegistry holds the tools offered to the model and over MCP.
func (a *app) toolRegistry() (*tools.Registry, error) {
	return tools.NewRegistry(sequential.Tool(thinking.WithLogger(a.log)))
}

// newSolver assembles transport, tool registry, catalogue and orchestrator.
// withReferences additionally opens the reference store.
func (a *app) newSolver(ctx context.Context, withReferences bool) (*solver.Solver, error) {
	provider, name, err := buildLLM(a.registry, a.cfg.Providers, a.log)
	if err != nil {
		return nil, err
	}
	conv := a.cfg.Conversation
	client := transport.New(provider,
		transport.WithName(name),
		transport.WithTimeout(conv.RequestTimeout),
		transport.WithMetrics(a.metrics),
	)

	reg, err := a.toolRegistry()
	if err != nil {
		return nil, err
	}
	concepts, err := a.concepts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}

	orch := conversation.New(client, reg, concepts, conversation.Config{
		Model:                conv.Model,
		MaxTokens:            conv.MaxTokens,
		MaxDepth:             conv.MaxDepth,
		MaxMessages:          conv.MaxMessages,
		MaxAttempts:          conv.MaxAttempts,
		RetryInitialInterval: conv.RetryInitialInterval,
		RunDeadline:          conv.RunDeadline,
	}, conversation.WithMetrics(a.metrics))

	opts := []solver.Option{solver.WithMetrics(a.metrics)}
	if concepts != nil {
		opts = append(opts, solver.WithConcepts(concepts))
	}
	if conv.SystemPrompt != "" {
		opts = append(opts, solver.WithSystemPrompt(conv.SystemPrompt))
	}
	if withReferences {
		r, err := a.retriever(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, solver.WithReferences(r))
	}
	return solver.New(orch, opts...), nil
}

// retriever opens the reference store and pairs it with the embeddings
// provider.
func (a *app) retriever(ctx context.Context) (*reference.Retriever, error) {
	ref := a.cfg.Reference
	if ref.PostgresDSN == "" {
		return nil, fmt.Errorf("reference.postgres_dsn is not configured")
	}
	emb, err := buildEmbeddings(a.registry, a.cfg.Providers.Embeddings, ref.EmbeddingDimensions)
	if err != nil {
		return nil, err
	}
	store, err := reference.NewStore(ctx, ref.PostgresDSN, ref.EmbeddingDimensions)
	if err != nil {
		return nil, err
	}
	a.onClose(store.Close)
	a.checkers = append(a.checkers, health.Ping("reference", store))

	return reference.NewRetriever(emb, store,
		reference.WithTopK(ref.TopK),
		reference.WithMaxDistance(ref.MaxDistance),
	), nil
}
