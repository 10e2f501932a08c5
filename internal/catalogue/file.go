package catalogue

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the YAML document layout:
//
//	concepts:
//	  - id: "7"
//	    name: Linear equations
type fileFormat struct {
	Concepts []Concept `yaml:"concepts"`
}

// FileSource reads the catalogue from a YAML file on every call. Wrap it in
// [Cached] to avoid re-reading.
type FileSource struct {
	Path string
}

var _ Source = FileSource{}

// Concepts reads and validates the file.
func (f FileSource) Concepts(ctx context.Context) ([]Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read %s: %w", f.Path, err)
	}
	concepts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %s: %w", f.Path, err)
	}
	return concepts, nil
}

// Parse decodes a YAML catalogue document. Unknown keys are rejected.
func Parse(data []byte) ([]Concept, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc fileFormat
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := validate(doc.Concepts); err != nil {
		return nil, err
	}
	return doc.Concepts, nil
}
