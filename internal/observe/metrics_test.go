package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the int64 sum data point with attribute
// key=value, or -1 if absent.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"odab.llm.duration", m.LLMDuration},
		{"odab.tool.duration", m.ToolDuration},
		{"odab.run.duration", m.RunDuration},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 12.5)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLLMRequest(ctx, "anthropic", "ok")
	m.RecordLLMRequest(ctx, "anthropic", "ok")
	m.RecordLLMRequest(ctx, "anthropic", "timeout")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "odab.llm.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "odab.llm.requests", "status", "timeout"); got != 1 {
		t.Errorf("timeout requests = %d, want 1", got)
	}
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "sequentialThinking", "ok")
	m.RecordToolCall(ctx, "sequentialThinking", "error")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "odab.tool.calls", "status", "ok"); got != 1 {
		t.Errorf("ok calls = %d, want 1", got)
	}
}

func TestRecordRetry(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRetry(context.Background(), "timeout")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "odab.llm.retries", "kind", "timeout"); got != 1 {
		t.Errorf("retries = %d, want 1", got)
	}
}

func TestRecordRun(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRun(ctx, "summarised", 4.2, 3)
	m.RecordRun(ctx, "degraded", 90, 0)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "odab.runs", "outcome", "summarised"); got != 1 {
		t.Errorf("summarised runs = %d, want 1", got)
	}
	met := findMetric(rm, "odab.run.depth")
	if met == nil {
		t.Fatal("odab.run.depth not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("odab.run.depth is %T, want int64 histogram", met.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("depth samples = %d, want 2", count)
	}
}

func TestRecordExtractionFailure(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordExtractionFailure(context.Background(), "solve")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "odab.extraction.failures", "stage", "solve"); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestActiveRuns(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, 1)
	m.ActiveRuns.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "odab.active_runs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("metric has no sum data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active runs = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
