package reference

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type problemFile struct {
	Problems []Problem `yaml:"problems"`
}

// LoadFile reads reference problems from a YAML file of the form
//
//	problems:
//	  - id: p1
//	    text: "2x + 3 = 7"
//	    steps: ["subtract 3", "divide by 2"]
//	    answer: "2"
func LoadFile(path string) ([]Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference: read %s: %w", path, err)
	}
	var f problemFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("reference: parse %s: %w", path, err)
	}

	var errs []error
	seen := make(map[string]bool, len(f.Problems))
	for i, p := range f.Problems {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Errorf("problems[%d]: empty id", i))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("problems[%d]: duplicate id %q", i, p.ID))
		case p.Text == "":
			errs = append(errs, fmt.Errorf("problems[%d]: empty text", i))
		}
		seen[p.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("reference: %s: %w", path, err)
	}
	return f.Problems, nil
}
