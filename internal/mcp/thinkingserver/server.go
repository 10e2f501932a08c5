// Package thinkingserver exposes the registered conversation tools, the
// sequentialThinking tool in particular, to external MCP clients.
//
// Every client session gets its own router, so thought ledgers never leak
// between sessions.
package thinkingserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/internal/tools"
	"github.com/MrWong99/odab/pkg/types"
)

// Defaults for the advertised implementation.
const (
	DefaultName    = "odab-thinking"
	DefaultVersion = "1.0.0"
)

// Config configures a Server.
type Config struct {
	Name    string
	Version string
	Metrics *observe.Metrics
}

// Server wraps an MCP server whose tools dispatch through a per-session
// [tools.Router].
type Server struct {
	registry *tools.Registry
	metrics  *observe.Metrics
	srv      *mcpsdk.Server

	mu      sync.Mutex
	routers map[*mcpsdk.ServerSession]*tools.Router
}

// New builds a Server exposing every tool in registry.
func New(registry *tools.Registry, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		registry: registry,
		metrics:  cfg.Metrics,
		routers:  make(map[*mcpsdk.ServerSession]*tools.Router),
	}
	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	for _, def := range registry.Definitions() {
		s.srv.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		}, s.handler(def.Name))
	}
	return s
}

// Run serves a single client over t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.srv.Run(ctx, t); err != nil {
		return fmt.Errorf("thinkingserver: %w", err)
	}
	return nil
}

// RunStdio serves over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect starts a session over t without blocking.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.srv.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("thinkingserver: connect: %w", err)
	}
	return ss, nil
}

func (s *Server) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		input := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return textResult(types.ToolResultBlock{
					Content: fmt.Sprintf(`{"error":%q,"status":"failed"}`, "arguments must be a JSON object"),
					IsError: true,
				}), nil
			}
		}
		res := s.router(req.Session).Dispatch(ctx, types.ToolUseBlock{Name: name, Input: input})
		return textResult(res), nil
	}
}

// router returns the session's router, creating it on first use. Routers of
// sessions that have since closed are dropped at that point.
func (s *Server) router(ss *mcpsdk.ServerSession) *tools.Router {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.routers[ss]; ok {
		return rt
	}

	live := make(map[*mcpsdk.ServerSession]bool)
	for other := range s.srv.Sessions() {
		live[other] = true
	}
	for other := range s.routers {
		if !live[other] {
			delete(s.routers, other)
		}
	}

	rt := s.registry.NewRouter(tools.WithMetrics(s.metrics))
	s.routers[ss] = rt
	return rt
}

// sessions reports how many routers are held.
func (s *Server) sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routers)
}

func textResult(res types.ToolResultBlock) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
		IsError: res.IsError,
	}
}
