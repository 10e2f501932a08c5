package reference

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/MrWong99/odab/pkg/provider/embeddings/mock"
)

// memIndex is an in-memory Index using cosine distance.
type memIndex struct {
	mu       sync.Mutex
	problems map[string]Problem
	failOn   string
}

func newMemIndex() *memIndex { return &memIndex{problems: map[string]Problem{}} }

func (m *memIndex) Index(_ context.Context, p Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == m.failOn {
		return errors.New("disk full")
	}
	m.problems[p.ID] = p
	return nil
}

func (m *memIndex) Nearest(_ context.Context, q []float32, k int) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Match
	for _, p := range m.problems {
		out = append(out, Match{Problem: p, Distance: cosineDistance(q, p.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func fixedEmbedder() *mock.Provider {
	return &mock.Provider{
		DimensionsValue: 2,
		Vectors: map[string][]float32{
			"linear":    {1, 0},
			"quadratic": {0, 1},
			"query":     {0.9, 0.1},
			"far":       {-1, 0},
		},
	}
}

func TestRetriever_IndexAllAndLookup(t *testing.T) {
	emb := fixedEmbedder()
	idx := newMemIndex()
	r := NewRetriever(emb, idx)

	n, err := r.IndexAll(t.Context(), []Problem{
		{ID: "p1", Text: "linear", Steps: []string{"isolate x"}, Answer: "2"},
		{ID: "p2", Text: "quadratic"},
	})
	if err != nil || n != 2 {
		t.Fatalf("IndexAll = %d, %v; want 2, nil", n, err)
	}

	got, err := r.Lookup(t.Context(), "query")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	want := Problem{ID: "p1", Text: "linear", Steps: []string{"isolate x"}, Answer: "2", Embedding: []float32{1, 0}}
	if diff := cmp.Diff(want, got.Problem); diff != "" {
		t.Errorf("match (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"linear", "quadratic", "query"}, emb.Embedded()); diff != "" {
		t.Errorf("embedded texts (-want +got):\n%s", diff)
	}
}

func TestRetriever_Lookup_NoReference(t *testing.T) {
	tests := []struct {
		name  string
		seed  []Problem
		query string
		opts  []RetrieverOption
	}{
		{name: "empty index", query: "query"},
		{name: "blank query", seed: []Problem{{ID: "p1", Text: "linear"}}, query: "  "},
		{
			name:  "beyond max distance",
			seed:  []Problem{{ID: "p1", Text: "linear"}},
			query: "far",
			opts:  []RetrieverOption{WithMaxDistance(0.5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(fixedEmbedder(), newMemIndex(), tt.opts...)
			if _, err := r.IndexAll(t.Context(), tt.seed); err != nil {
				t.Fatal(err)
			}
			if _, err := r.Lookup(t.Context(), tt.query); !errors.Is(err, ErrNoReference) {
				t.Errorf("err = %v, want ErrNoReference", err)
			}
		})
	}
}

func TestRetriever_EmbedError(t *testing.T) {
	emb := &mock.Provider{Err: errors.New("quota")}
	r := NewRetriever(emb, newMemIndex())
	if _, err := r.Lookup(t.Context(), "x"); err == nil || errors.Is(err, ErrNoReference) {
		t.Errorf("Lookup err = %v, want embed failure", err)
	}
	if _, err := r.IndexAll(t.Context(), []Problem{{ID: "a", Text: "x"}}); err == nil {
		t.Error("IndexAll should fail when embedding fails")
	}
}

func TestRetriever_IndexAll_StopsAtFailure(t *testing.T) {
	idx := newMemIndex()
	idx.failOn = "b"
	r := NewRetriever(fixedEmbedder(), idx)
	n, err := r.IndexAll(t.Context(), []Problem{{ID: "a", Text: "linear"}, {ID: "b", Text: "far"}, {ID: "c", Text: "quadratic"}})
	if err == nil || n != 1 {
		t.Fatalf("IndexAll = %d, %v; want 1 and an error", n, err)
	}
}

func TestWithTopK_IgnoresNonPositive(t *testing.T) {
	r := NewRetriever(fixedEmbedder(), newMemIndex(), WithTopK(0))
	if r.topK != DefaultTopK {
		t.Errorf("topK = %d, want %d", r.topK, DefaultTopK)
	}
}

func TestAugment(t *testing.T) {
	got := Augment("3x = 9", Problem{Text: "2x = 4", Steps: []string{"divide by 2"}, Answer: "2"})
	for _, want := range []string{
		"Problem:\n3x = 9\n",
		"Reference problem:\n2x = 4\n",
		"Reference step 1: divide by 2\n",
		"Reference answer: 2\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Augment output missing %q:\n%s", want, got)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	good := write("good.yaml", `
problems:
  - id: p1
    text: "2x + 3 = 7"
    steps: ["subtract 3", "divide by 2"]
    answer: "2"
  - id: p2
    text: "x^2 = 9"
`)
	got, err := LoadFile(good)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := []Problem{
		{ID: "p1", Text: "2x + 3 = 7", Steps: []string{"subtract 3", "divide by 2"}, Answer: "2"},
		{ID: "p2", Text: "x^2 = 9"},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	for name, body := range map[string]string{
		"dup.yaml":     "problems:\n  - {id: a, text: x}\n  - {id: a, text: y}\n",
		"notext.yaml":  "problems:\n  - {id: a}\n",
		"unknown.yaml": "problems:\n  - {id: a, text: x, solution: y}\n",
	} {
		if _, err := LoadFile(write(name, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
