// Package tools holds the closed set of tools the model may call during a
// conversation run and routes tool-use blocks to them.
//
// A [Registry] is built once at startup and shared by every run. Each run asks
// it for a [Router], which binds fresh per-run handler state (for example one
// thought ledger per conversation) and turns tool-use blocks into tool-result
// blocks.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/pkg/types"
)

// Name identifies a tool. Only the constants below are valid.
type Name string

const (
	// SequentialThinking lets the model record numbered, revisable thoughts.
	SequentialThinking Name = "sequentialThinking"
)

var knownNames = []Name{SequentialThinking}

// IsValid reports whether n is a member of the tool enumeration.
func (n Name) IsValid() bool {
	for _, k := range knownNames {
		if n == k {
			return true
		}
	}
	return false
}

// ErrUnknownTool is reported to the model when it calls a tool that is not
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// Handler executes one tool call. The returned result is JSON-encoded into the
// tool-result block; a returned error becomes an error-flagged result of the
// form {"error": "...", "status": "failed"}.
type Handler func(ctx context.Context, input map[string]any) (any, error)

// Tool is a registrable tool.
type Tool struct {
	Name       Name
	Definition types.ToolDefinition

	// Bind returns a handler with fresh per-run state. It is called once per
	// Router.
	Bind func() Handler
}

// Registry is the immutable set of tools offered to the model.
type Registry struct {
	tools []Tool
	index map[Name]int
}

// NewRegistry validates ts and builds a Registry. Names outside the
// enumeration, duplicates, mismatched definition names and missing Bind
// functions are rejected.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[Name]int, len(ts))}
	var errs []error
	for _, t := range ts {
		switch {
		case !t.Name.IsValid():
			errs = append(errs, fmt.Errorf("tools: %q is not a known tool", t.Name))
			continue
		case t.Bind == nil:
			errs = append(errs, fmt.Errorf("tools: %q has no Bind function", t.Name))
			continue
		case t.Definition.Name != string(t.Name):
			errs = append(errs, fmt.Errorf("tools: %q has definition named %q", t.Name, t.Definition.Name))
			continue
		}
		if _, dup := r.index[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tools: %q registered twice", t.Name))
			continue
		}
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Definitions returns the tool descriptors in registration order.
func (r *Registry) Definitions() []types.ToolDefinition {
	defs := make([]types.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.Definition
	}
	return defs
}

// Lookup returns the registered tool called name.
func (r *Registry) Lookup(name Name) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// Router dispatches the tool uses of one run. Handlers may keep state, so a
// Router must not be shared between runs.
type Router struct {
	handlers map[Name]Handler
	metrics  *observe.Metrics
}

// NewRouter binds a fresh handler for every registered tool.
func (r *Registry) NewRouter(opts ...RouterOption) *Router {
	rt := &Router{handlers: make(map[Name]Handler, len(r.tools))}
	for _, o := range opts {
		o(rt)
	}
	if rt.metrics == nil {
		rt.metrics = observe.DefaultMetrics()
	}
	for _, t := range r.tools {
		rt.handlers[t.Name] = t.Bind()
	}
	return rt
}

// Dispatch runs the tool named by use and returns its result block. It never
// fails: unknown tools and handler errors are reported to the model as
// error-flagged results. The result's ToolUseID always equals use.ID.
func (rt *Router) Dispatch(ctx context.Context, use types.ToolUseBlock) types.ToolResultBlock {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "tools.dispatch",
		trace.WithAttributes(
			attribute.String("tool.name", use.Name),
			attribute.String("tool.use_id", use.ID),
		),
	)
	defer span.End()

	result := rt.dispatch(ctx, use)

	status := "ok"
	if result.IsError {
		status = "error"
		span.SetAttributes(attribute.Bool("tool.is_error", true))
	}
	rt.metrics.RecordToolCall(ctx, use.Name, status)
	rt.metrics.ToolDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("tool", use.Name)),
	)
	return result
}

func (rt *Router) dispatch(ctx context.Context, use types.ToolUseBlock) types.ToolResultBlock {
	log := observe.Logger(ctx).With("tool", use.Name, "tool_use_id", use.ID)

	h, ok := rt.handlers[Name(use.Name)]
	if !ok {
		log.Warn("tools: model called unknown tool")
		return errorResult(use.ID, fmt.Errorf("%w %q", ErrUnknownTool, use.Name))
	}

	out, err := h(ctx, use.Input)
	if err != nil {
		log.Debug("tools: handler rejected input", "err", err)
		return errorResult(use.ID, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		log.Error("tools: encode result", "err", err)
		return errorResult(use.ID, fmt.Errorf("encode result: %w", err))
	}
	return types.ToolResultBlock{ToolUseID: use.ID, Content: string(data)}
}

type failure struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func errorResult(id string, err error) types.ToolResultBlock {
	data, mErr := json.Marshal(failure{Error: err.Error(), Status: "failed"})
	if mErr != nil {
		slog.Error("tools: encode failure payload", "err", mErr)
		data = []byte(`{"status":"failed"}`)
	}
	return types.ToolResultBlock{ToolUseID: id, Content: string(data), IsError: true}
}
