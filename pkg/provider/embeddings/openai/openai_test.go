package openai

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		opts     []Option
		wantID   string
		wantDims int
	}{
		{name: "default model", wantID: DefaultModel, wantDims: 1536},
		{name: "large", model: "text-embedding-3-large", wantID: "text-embedding-3-large", wantDims: 3072},
		{name: "ada", model: "text-embedding-ada-002", wantID: "text-embedding-ada-002", wantDims: 1536},
		{name: "unknown", model: "nomic-embed-text", wantID: "nomic-embed-text", wantDims: 1536},
		{
			name:     "reduced dimensions",
			model:    "text-embedding-3-small",
			opts:     []Option{WithDimensions(256), WithBaseURL("http://localhost:11434/v1")},
			wantID:   "text-embedding-3-small",
			wantDims: 256,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New("sk-test", tt.model, tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.ModelID(); got != tt.wantID {
				t.Errorf("ModelID() = %q, want %q", got, tt.wantID)
			}
			if got := p.Dimensions(); got != tt.wantDims {
				t.Errorf("Dimensions() = %d, want %d", got, tt.wantDims)
			}
		})
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.EmbedBatch(t.Context(), nil)
	if err != nil || got != nil {
		t.Fatalf("EmbedBatch(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestToFloat32(t *testing.T) {
	got := toFloat32([]float64{1, 2.5, -0.5})
	if diff := cmp.Diff([]float32{1, 2.5, -0.5}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
