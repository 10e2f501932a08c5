// Package transport performs single request/response exchanges with an LLM
// backend under a per-request deadline.
//
// A [Client] never retries and never inspects the response beyond checking that
// one arrived. Failures come back as *llm.TransportError so the caller can tell
// a timeout from any other failure.
package transport

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/pkg/provider/llm"
)

// DefaultTimeout bounds a single exchange.
const DefaultTimeout = 30 * time.Second

// errNoResponse is wrapped when a backend returns neither a response nor an error.
var errNoResponse = errors.New("backend returned no response")

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request deadline. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithName sets the provider label used in errors, metrics and spans.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client sends completion requests to one [llm.Provider]. Safe for concurrent
// use.
type Client struct {
	provider llm.Provider
	name     string
	timeout  time.Duration
	metrics  *observe.Metrics
}

// New returns a Client for p.
func New(p llm.Provider, opts ...Option) *Client {
	c := &Client{
		provider: p,
		name:     "llm",
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Timeout returns the per-request deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Send performs one exchange. The request is bounded by the client timeout in
// addition to any deadline already on ctx. Every error is an
// *llm.TransportError.
func (c *Client) Send(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "transport.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", c.name),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		),
	)
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(reqCtx, req)
	if err == nil && resp == nil {
		err = errNoResponse
	}

	status := "ok"
	var te *llm.TransportError
	if err != nil {
		te = llm.Classify(reqCtx, c.name, err)
		status = te.Kind.String()
		observe.RecordError(span, te)
	}

	c.metrics.RecordLLMRequest(ctx, c.name, status)
	c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("provider", c.name),
			attribute.String("status", status),
		),
	)

	if te != nil {
		observe.Logger(ctx).Debug("transport: request failed",
			"provider", c.name, "kind", te.Kind.String(), "err", te.Err)
		return nil, te
	}
	span.SetAttributes(
		attribute.String("llm.stop_reason", string(resp.StopReason)),
		attribute.Int("llm.total_tokens", resp.Usage.TotalTokens),
	)
	return resp, nil
}
