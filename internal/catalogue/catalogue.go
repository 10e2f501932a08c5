// Package catalogue provides the list of concept tags the model may attach to
// a solved problem.
//
// A [Source] yields the full list. Backends read it from a YAML file
// ([FileSource]) or from PostgreSQL ([PostgresSource]); [Cached] keeps the
// result in memory for a while so that every run does not hit the backend.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoConcepts is returned by sources that yielded an empty catalogue.
var ErrNoConcepts = errors.New("catalogue: no concepts")

// Concept is one tag the model may choose.
type Concept struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Source yields the current catalogue. Implementations must be safe for
// concurrent use.
type Source interface {
	Concepts(ctx context.Context) ([]Concept, error)
}

// Static is a fixed in-memory catalogue.
type Static []Concept

// Concepts returns a copy of s, or ErrNoConcepts when s is empty.
func (s Static) Concepts(context.Context) ([]Concept, error) {
	if len(s) == 0 {
		return nil, ErrNoConcepts
	}
	out := make([]Concept, len(s))
	copy(out, s)
	return out, nil
}

// Render lists concepts as "N. <name> = <id>" lines, numbered from 1.
func Render(concepts []Concept) string {
	var b strings.Builder
	for i, c := range concepts {
		fmt.Fprintf(&b, "%d. %s = %s\n", i+1, c.Name, c.ID)
	}
	return b.String()
}

// Resolve maps ids to concepts in the order given. Ids missing from the
// catalogue are returned separately. Duplicate ids resolve once.
func Resolve(concepts []Concept, ids []string) (found []Concept, unknown []string) {
	byID := make(map[string]Concept, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := byID[id]; ok {
			found = append(found, c)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}

func validate(concepts []Concept) error {
	if len(concepts) == 0 {
		return ErrNoConcepts
	}
	var errs []error
	seen := make(map[string]bool, len(concepts))
	for i, c := range concepts {
		switch {
		case strings.TrimSpace(c.ID) == "":
			errs = append(errs, fmt.Errorf("catalogue: concept %d: empty id", i))
		case strings.TrimSpace(c.Name) == "":
			errs = append(errs, fmt.Errorf("catalogue: concept %q: empty name", c.ID))
		case seen[c.ID]:
			errs = append(errs, fmt.Errorf("catalogue: duplicate concept id %q", c.ID))
		}
		seen[c.ID] = true
	}
	return errors.Join(errs...)
}
