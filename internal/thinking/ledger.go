// Package thinking implements the ledger behind the sequentialThinking tool.
//
// A [Ledger] validates each thought the model submits, appends it to a linear
// history and, when the thought forks from an earlier one, to a named branch.
// Branches are views over the history, not partitions: a branched thought
// appears in both. One ledger belongs to one conversation run and is discarded
// with it.
package thinking

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
)

const (
	fieldThought           = "thought"
	fieldThoughtNumber     = "thoughtNumber"
	fieldTotalThoughts     = "totalThoughts"
	fieldNextThoughtNeeded = "nextThoughtNeeded"
)

// Record is one validated thought.
type Record struct {
	Thought           string
	ThoughtNumber     int
	TotalThoughts     int
	NextThoughtNeeded bool

	IsRevision        bool
	RevisesThought    int // 0 when absent
	BranchFromThought int // 0 when absent
	BranchID          string
	NeedsMoreThoughts bool
}

// Summary is returned to the model after a successful Record.
type Summary struct {
	ThoughtNumber        int      `json:"thoughtNumber"`
	TotalThoughts        int      `json:"totalThoughts"`
	NextThoughtNeeded    bool     `json:"nextThoughtNeeded"`
	Branches             []string `json:"branches"`
	ThoughtHistoryLength int      `json:"thoughtHistoryLength"`
}

// Ledger is the append-only thought store of one run. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	history  []Record
	branches map[string][]Record
	log      *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for the boxed debug rendering. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		led.log = l
	}
}

// New returns an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{branches: make(map[string][]Record), log: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Record validates input and appends it. A totalThoughts below thoughtNumber
// is raised to thoughtNumber. On a *ValidationError nothing is appended.
func (l *Ledger) Record(input map[string]any) (Summary, error) {
	rec, err := parse(input)
	if err != nil {
		return Summary{}, err
	}
	if rec.ThoughtNumber > rec.TotalThoughts {
		rec.TotalThoughts = rec.ThoughtNumber
	}

	l.mu.Lock()
	l.history = append(l.history, rec)
	if rec.BranchFromThought > 0 && rec.BranchID != "" {
		l.branches[rec.BranchID] = append(l.branches[rec.BranchID], rec)
	}
	sum := Summary{
		ThoughtNumber:        rec.ThoughtNumber,
		TotalThoughts:        rec.TotalThoughts,
		NextThoughtNeeded:    rec.NextThoughtNeeded,
		Branches:             l.branchIDsLocked(),
		ThoughtHistoryLength: len(l.history),
	}
	l.mu.Unlock()

	if l.log.Enabled(context.Background(), slog.LevelDebug) {
		l.log.Debug("thinking: thought recorded\n"+Render(rec),
			"thought_number", rec.ThoughtNumber,
			"total_thoughts", rec.TotalThoughts,
			"branch_id", rec.BranchID,
		)
	}
	return sum, nil
}

// History returns a copy of the linear history.
func (l *Ledger) History() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.history)
}

// Branch returns a copy of the records of branch id, or nil if unknown.
func (l *Ledger) Branch(id string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.branches[id])
}

// BranchIDs returns the known branch ids in sorted order.
func (l *Ledger) BranchIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.branchIDsLocked()
}

func (l *Ledger) branchIDsLocked() []string {
	ids := slices.Sorted(maps.Keys(l.branches))
	if ids == nil {
		ids = []string{}
	}
	return ids
}

// MarshalJSON encodes a nil Branches as [].
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	if s.Branches == nil {
		s.Branches = []string{}
	}
	return json.Marshal(alias(s))
}

func parse(input map[string]any) (Record, error) {
	var rec Record

	thought, ok := input[fieldThought].(string)
	if !ok {
		return Record{}, invalid(fieldThought, "must be a string")
	}
	rec.Thought = thought

	n, ok := toInt(input[fieldThoughtNumber])
	if !ok {
		return Record{}, invalid(fieldThoughtNumber, "must be a number")
	}
	if n < 1 {
		return Record{}, invalid(fieldThoughtNumber, "must be at least 1")
	}
	rec.ThoughtNumber = n

	total, ok := toInt(input[fieldTotalThoughts])
	if !ok {
		return Record{}, invalid(fieldTotalThoughts, "must be a number")
	}
	if total < 1 {
		return Record{}, invalid(fieldTotalThoughts, "must be at least 1")
	}
	rec.TotalThoughts = total

	next, ok := input[fieldNextThoughtNeeded].(bool)
	if !ok {
		return Record{}, invalid(fieldNextThoughtNeeded, "must be a boolean")
	}
	rec.NextThoughtNeeded = next

	// Optional fields with an incompatible type are ignored.
	rec.IsRevision, _ = input["isRevision"].(bool)
	rec.RevisesThought, _ = toInt(input["revisesThought"])
	rec.BranchFromThought, _ = toInt(input["branchFromThought"])
	rec.BranchID, _ = input["branchId"].(string)
	rec.NeedsMoreThoughts, _ = input["needsMoreThoughts"].(bool)
	return rec, nil
}

// toInt accepts the numeric shapes a decoded tool input may carry. Fractions
// are truncated.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case float32:
		return int(n), true
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
