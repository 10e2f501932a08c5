// Package solver implements the problem workflows on top of a conversation
// runner: solving with the thinking tool, transcribing a problem image,
// editing a problem and grading a handwritten answer.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/odab/internal/catalogue"
	"github.com/MrWong99/odab/internal/conversation"
	"github.com/MrWong99/odab/internal/extract"
	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/internal/reference"
	"github.com/MrWong99/odab/pkg/types"
)

// ErrUnavailable is returned when the model could not be reached.
var ErrUnavailable = errors.New("could not produce an answer, try again")

// ErrEmptyReply is returned when a single-shot request yields no text.
var ErrEmptyReply = errors.New("solver: empty reply")

// Runner runs one conversation. *conversation.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, in conversation.Input) (*conversation.Result, error)
}

// ReferenceFinder looks up a similar solved problem. *reference.Retriever
// implements it.
type ReferenceFinder interface {
	Lookup(ctx context.Context, text string) (reference.Match, error)
}

// SolveRequest is a problem given as text, an image or both.
type SolveRequest struct {
	Text  string
	Image *types.ImageBlock
}

// Solution is a solved problem.
type Solution struct {
	extract.StructuredResult

	// Concepts are the catalogue entries named by ConceptTags. Unknown ids
	// are dropped.
	Concepts []catalogue.Concept

	// Reference is the similar problem the run was given, if any.
	Reference *reference.Match

	RunID string
	Depth int
}

// Edit is the outcome of EditProblem.
type Edit struct {
	Problem string
	// Diff is a line-oriented rendering of the change, "-" and "+" prefixed.
	Diff string
}

// Solver runs the workflows. It is safe for concurrent use.
type Solver struct {
	runner   Runner
	concepts catalogue.Source
	refs     ReferenceFinder
	metrics  *observe.Metrics
	system   string
}

// Option configures a Solver.
type Option func(*Solver)

// WithConcepts sets the catalogue used to resolve concept ids.
func WithConcepts(src catalogue.Source) Option {
	return func(s *Solver) { s.concepts = src }
}

// WithReferences enables SolveWithReference lookups.
func WithReferences(f ReferenceFinder) Option {
	return func(s *Solver) { s.refs = f }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Solver) { s.metrics = m }
}

// WithSystemPrompt sets the system prompt for solve runs.
func WithSystemPrompt(p string) Option {
	return func(s *Solver) { s.system = p }
}

// New returns a Solver using runner.
func New(runner Runner, opts ...Option) *Solver {
	s := &Solver{runner: runner}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Solve runs the tool loop, forces the summary turn and extracts the
// structured result.
func (s *Solver) Solve(ctx context.Context, req SolveRequest) (*Solution, error) {
	concepts := s.loadConcepts(ctx)
	return s.solve(ctx, req, concepts, nil)
}

// SolveWithReference looks up a similar solved problem and hands it to the
// model alongside the problem. It falls back to a plain solve when no
// reference is configured or found.
func (s *Solver) SolveWithReference(ctx context.Context, req SolveRequest) (*Solution, error) {
	if s.refs == nil || strings.TrimSpace(req.Text) == "" {
		return s.Solve(ctx, req)
	}

	var (
		concepts []catalogue.Concept
		match    *reference.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		concepts = s.loadConcepts(gctx)
		return nil
	})
	g.Go(func() error {
		m, err := s.refs.Lookup(gctx, req.Text)
		switch {
		case err == nil:
			match = &m
		case errors.Is(err, reference.ErrNoReference):
		default:
			observe.Logger(gctx).Warn("solver: reference lookup failed", "err", err)
		}
		return nil
	})
	_ = g.Wait()

	if match != nil {
		observe.Logger(ctx).Debug("solver: using reference problem", "id", match.ID, "distance", match.Distance)
		req.Text = reference.Augment(req.Text, match.Problem)
	}
	return s.solve(ctx, req, concepts, match)
}

func (s *Solver) solve(ctx context.Context, req SolveRequest, concepts []catalogue.Concept, match *reference.Match) (*Solution, error) {
	res, err := s.runner.Run(ctx, conversation.Input{
		Text:            req.Text,
		Image:           req.Image,
		SystemPrompt:    s.system,
		AlwaysSummarize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("solver: solve: %w", err)
	}
	if res.Degraded {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
	}

	log := observe.Logger(ctx).With("run_id", res.RunID)
	sr, err := extract.Parse(res.Text())
	if err != nil {
		s.metrics.RecordExtractionFailure(ctx, "parse")
		log.Warn("solver: unparseable summary", "err", err)
		return nil, err
	}

	found, unknown := catalogue.Resolve(concepts, sr.ConceptTags)
	if len(unknown) > 0 {
		log.Info("solver: dropping unknown concept ids", "ids", unknown)
	}
	return &Solution{
		StructuredResult: sr,
		Concepts:         found,
		Reference:        match,
		RunID:            res.RunID,
		Depth:            res.Depth,
	}, nil
}

// ExtractProblem transcribes the problem in image.
func (s *Solver) ExtractProblem(ctx context.Context, image *types.ImageBlock) (string, error) {
	if image == nil {
		return "", fmt.Errorf("solver: extract: %w", conversation.ErrEmptyInput)
	}
	return s.single(ctx, "extract", conversation.Input{Text: extractPrompt, Image: image})
}

// EditProblem rewrites problem according to request.
func (s *Solver) EditProblem(ctx context.Context, problem, request string) (*Edit, error) {
	text, err := s.single(ctx, "edit", conversation.Input{Text: editText(problem, request)})
	if err != nil {
		return nil, err
	}
	return &Edit{Problem: text, Diff: lineDiff(problem, text)}, nil
}

// VerifyAnswer grades the handwritten answer in image against answer. Any
// failure yields a Verdict with Correct false alongside the error.
func (s *Solver) VerifyAnswer(ctx context.Context, image *types.ImageBlock, question, answer string) (extract.Verdict, error) {
	if image == nil {
		return extract.Verdict{}, fmt.Errorf("solver: verify: %w", conversation.ErrEmptyInput)
	}
	text, err := s.single(ctx, "verify", conversation.Input{Text: verifyText(question, answer), Image: image})
	if err != nil {
		return extract.Verdict{}, err
	}
	v, err := extract.ParseVerdict(text)
	if err != nil {
		s.metrics.RecordExtractionFailure(ctx, "verdict")
		observe.Logger(ctx).Warn("solver: incomplete verdict", "err", err)
		v.Correct = false
		return v, fmt.Errorf("solver: verify: %w", err)
	}
	return v, nil
}

// single runs a first-turn conversation and returns its text.
func (s *Solver) single(ctx context.Context, op string, in conversation.Input) (string, error) {
	res, err := s.runner.Run(ctx, in)
	if err != nil {
		return "", fmt.Errorf("solver: %s: %w", op, err)
	}
	if res.Degraded {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", fmt.Errorf("solver: %s: %w", op, ErrEmptyReply)
	}
	return text, nil
}

func (s *Solver) loadConcepts(ctx context.Context) []catalogue.Concept {
	if s.concepts == nil {
		return nil
	}
	cs, err := s.concepts.Concepts(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("solver: concept catalogue unavailable", "err", err)
		return nil
	}
	return cs
}

func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}
