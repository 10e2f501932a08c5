// Package observetest provides helpers for asserting on odab metrics in tests.
//
// Example:
//
//	m, reader := observetest.NewMetrics(t)
//	router := registry.NewRouter(tools.WithMetrics(m))
//	...
//	if got := observetest.Counter(t, reader, "odab.tool.calls", "status", "ok"); got != 1 {
//	    t.Errorf(...)
//	}
package observetest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/odab/internal/observe"
)

// NewMetrics returns a Metrics instance backed by a ManualReader.
func NewMetrics(t testing.TB) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// Collect gathers all metric data from reader.
func Collect(t testing.TB, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// Find returns the named metric or nil.
func Find(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// Counter sums the int64 data points of the named counter whose attribute key
// equals value. An empty key sums every data point. Missing metrics count as 0.
func Counter(t testing.TB, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	met := Find(Collect(t, reader), name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, not an int64 sum", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount returns the total sample count of the named float64
// histogram. Missing metrics count as 0.
func HistogramCount(t testing.TB, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	met := Find(Collect(t, reader), name)
	if met == nil {
		return 0
	}
	var total uint64
	switch h := met.Data.(type) {
	case metricdata.Histogram[float64]:
		for _, dp := range h.DataPoints {
			total += dp.Count
		}
	case metricdata.Histogram[int64]:
		for _, dp := range h.DataPoints {
			total += dp.Count
		}
	default:
		t.Fatalf("metric %q is %T, not a histogram", name, met.Data)
	}
	return total
}
