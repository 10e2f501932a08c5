package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/odab/internal/observe/observetest"
	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/provider/llm/mock"
	"github.com/MrWong99/odab/pkg/types"
)

func TestSend_Success(t *testing.T) {
	t.Parallel()

	m, reader := observetest.NewMetrics(t)
	p := &mock.Provider{CompleteResponse: mock.TextResponse("hi")}
	c := New(p, WithName("mock"), WithMetrics(m))

	req := llm.CompletionRequest{Model: "m", Messages: []types.Message{types.NewUserText("q")}}
	resp, err := c.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text() != "hi" {
		t.Errorf("text = %q, want hi", resp.Text())
	}
	if p.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", p.Calls())
	}
	dl, ok := p.CompleteCalls[0].Ctx.Deadline()
	if !ok {
		t.Fatal("request context has no deadline")
	}
	if until := time.Until(dl); until <= 0 || until > DefaultTimeout {
		t.Errorf("deadline in %v, want within %v", until, DefaultTimeout)
	}
	if got := observetest.Counter(t, reader, "odab.llm.requests", "status", "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
	if got := observetest.HistogramCount(t, reader, "odab.llm.duration"); got != 1 {
		t.Errorf("duration samples = %d, want 1", got)
	}
}

func TestSend_Timeout(t *testing.T) {
	t.Parallel()

	m, reader := observetest.NewMetrics(t)
	p := &mock.Provider{Script: []mock.Step{{Block: true}}}
	c := New(p, WithName("mock"), WithMetrics(m), WithTimeout(20*time.Millisecond))

	_, err := c.Send(context.Background(), llm.CompletionRequest{})
	var te *llm.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *llm.TransportError", err)
	}
	if te.Kind != llm.ErrorTimeout {
		t.Errorf("Kind = %s, want timeout", te.Kind)
	}
	if te.Provider != "mock" {
		t.Errorf("Provider = %q, want mock", te.Provider)
	}
	if got := observetest.Counter(t, reader, "odab.llm.requests", "status", "timeout"); got != 1 {
		t.Errorf("timeout requests = %d, want 1", got)
	}
}

func TestSend_Other(t *testing.T) {
	t.Parallel()

	m, _ := observetest.NewMetrics(t)
	cause := errors.New("503 service unavailable")
	c := New(&mock.Provider{CompleteErr: cause}, WithMetrics(m))

	_, err := c.Send(context.Background(), llm.CompletionRequest{})
	var te *llm.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *llm.TransportError", err)
	}
	if te.Kind != llm.ErrorOther {
		t.Errorf("Kind = %s, want other", te.Kind)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
}

func TestSend_NilResponse(t *testing.T) {
	t.Parallel()

	m, _ := observetest.NewMetrics(t)
	c := New(&mock.Provider{}, WithMetrics(m))

	_, err := c.Send(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, errNoResponse) {
		t.Errorf("err = %v, want errNoResponse", err)
	}
}

func TestSend_DoesNotMutateRequest(t *testing.T) {
	t.Parallel()

	m, _ := observetest.NewMetrics(t)
	c := New(&mock.Provider{CompleteResponse: mock.TextResponse("ok")}, WithMetrics(m))

	msgs := []types.Message{types.NewUserText("q")}
	if _, err := c.Send(context.Background(), llm.CompletionRequest{Messages: msgs}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text() != "q" {
		t.Errorf("history mutated: %+v", msgs)
	}
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	t.Parallel()
	c := New(&mock.Provider{}, WithTimeout(0), WithTimeout(-time.Second))
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout(), DefaultTimeout)
	}
}
