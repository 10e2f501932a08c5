// Package observe provides the observability primitives shared by odab:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware for
// the admin server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus through the exporter bridge set up by [InitProvider]. A
// package-level [DefaultMetrics] instance serves production code; tests should
// build their own with [NewMetrics] and an sdk/metric ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all odab metrics.
const meterName = "github.com/MrWong99/odab"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks a single completion exchange, including failures.
	LLMDuration metric.Float64Histogram

	// ToolDuration tracks one tool dispatch.
	ToolDuration metric.Float64Histogram

	// RunDuration tracks a whole conversation run.
	RunDuration metric.Float64Histogram

	// RunDepth records the tool round-trip depth a run finished at.
	RunDepth metric.Int64Histogram

	// --- Counters ---

	// LLMRequests counts completion exchanges. Attributes: provider, status.
	LLMRequests metric.Int64Counter

	// LLMRetries counts retried exchanges. Attributes: kind.
	LLMRetries metric.Int64Counter

	// ToolCalls counts tool dispatches. Attributes: tool, status.
	ToolCalls metric.Int64Counter

	// Runs counts finished runs. Attributes: outcome.
	Runs metric.Int64Counter

	// ExtractionFailures counts final answers that could not be parsed.
	ExtractionFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks in-flight conversation runs.
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin HTTP request time. Attributes: method,
	// path, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds, sized for remote
// model calls that may run up to the 30 s request timeout.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120,
}

var depthBuckets = []float64{0, 1, 2, 3, 5, 8, 10, 12, 15}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("odab.llm.duration",
		metric.WithDescription("Latency of a single LLM completion exchange."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("odab.tool.duration",
		metric.WithDescription("Latency of a tool dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("odab.run.duration",
		metric.WithDescription("Wall-clock time of a conversation run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDepth, err = m.Int64Histogram("odab.run.depth",
		metric.WithDescription("Tool round-trip depth at the end of a run."),
		metric.WithExplicitBucketBoundaries(depthBuckets...),
	); err != nil {
		return nil, err
	}

	if met.LLMRequests, err = m.Int64Counter("odab.llm.requests",
		metric.WithDescription("LLM completion exchanges by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMRetries, err = m.Int64Counter("odab.llm.retries",
		metric.WithDescription("Retried LLM exchanges by failure kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("odab.tool.calls",
		metric.WithDescription("Tool dispatches by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("odab.runs",
		metric.WithDescription("Finished conversation runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionFailures, err = m.Int64Counter("odab.extraction.failures",
		metric.WithDescription("Final answers that failed structured extraction."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("odab.active_runs",
		metric.WithDescription("Number of in-flight conversation runs."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("odab.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLLMRequest increments the LLM request counter.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, status string) {
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordRetry increments the retry counter for a failure kind.
func (m *Metrics) RecordRetry(ctx context.Context, kind string) {
	m.LLMRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordToolCall increments the tool call counter.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordRun records the outcome, duration and depth of a finished run.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, seconds float64, depth int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Runs.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, seconds, attrs)
	m.RunDepth.Record(ctx, int64(depth), attrs)
}

// RecordExtractionFailure increments the extraction failure counter.
func (m *Metrics) RecordExtractionFailure(ctx context.Context, stage string) {
	m.ExtractionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
