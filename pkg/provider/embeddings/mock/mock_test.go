package mock

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProvider_Deterministic(t *testing.T) {
	p := &Provider{DimensionsValue: 8}
	a, _ := p.Embed(t.Context(), "x")
	b, _ := p.Embed(t.Context(), "x")
	c, _ := p.Embed(t.Context(), "y")
	if len(a) != 8 {
		t.Fatalf("len = %d, want 8", len(a))
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same text gave different vectors:\n%s", diff)
	}
	if cmp.Equal(a, c) {
		t.Error("different texts gave identical vectors")
	}
	if diff := cmp.Diff([]string{"x", "x", "y"}, p.Embedded()); diff != "" {
		t.Errorf("recorded texts (-want +got):\n%s", diff)
	}
}

func TestProvider_VectorsAndErr(t *testing.T) {
	p := &Provider{Vectors: map[string][]float32{"a": {1, 0}}}
	got, err := p.EmbedBatch(t.Context(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]float32{{1, 0}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	boom := errors.New("boom")
	p.Err = boom
	if _, err := p.Embed(t.Context(), "a"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
