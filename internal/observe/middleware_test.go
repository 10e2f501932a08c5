package observe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/internal/observe/observetest"
)

func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return exp
}

func TestMiddleware(t *testing.T) {
	exp := installTracer(t)
	m, reader := observetest.NewMetrics(t)

	mux := http.NewServeMux()
	var seen string
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		seen = observe.TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := observe.Middleware(m)(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if len(seen) != 32 {
		t.Errorf("handler trace ID = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get(observe.TraceIDHeader); got != seen {
		t.Errorf("%s = %q, want %q", observe.TraceIDHeader, got, seen)
	}

	if n := observetest.HistogramCount(t, reader, "odab.http.request.duration"); n != 1 {
		t.Errorf("duration samples = %d, want 1", n)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	attrs := attribute.NewSet(spans[0].Attributes...)
	if v, _ := attrs.Value("http.response.status_code"); v.AsInt64() != 503 {
		t.Errorf("http.response.status_code = %v, want 503", v.AsInt64())
	}
	if v, _ := attrs.Value("http.route"); v.AsString() != "GET /readyz" {
		t.Errorf("http.route = %q, want the mux pattern", v.AsString())
	}
}

func TestMiddleware_JoinsIncomingTrace(t *testing.T) {
	installTracer(t)
	m, _ := observetest.NewMetrics(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	h := observe.Middleware(m)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = observe.TraceID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler trace ID = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get(observe.TraceIDHeader); got != traceID {
		t.Errorf("%s = %q, want %q", observe.TraceIDHeader, got, traceID)
	}
}
