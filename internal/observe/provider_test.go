package observe_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/odab/internal/observe"
)

func TestInitProvider(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "odab-test",
		ServiceVersion: "v0.0.1",
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter("odab-test").Int64Counter("odab.test.calls")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var sawCounter, sawService bool
	for _, mf := range families {
		switch mf.GetName() {
		case "odab_test_calls_total":
			sawCounter = true
		case "target_info":
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "service_name" && l.GetValue() == "odab-test" {
						sawService = true
					}
				}
			}
		}
	}
	if !sawCounter {
		t.Error("counter not exported to the registry")
	}
	if !sawService {
		t.Error("target_info lacks service_name=odab-test")
	}

	_, span := otel.Tracer("odab-test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Error("tracer provider not installed: span context invalid")
	}
}
