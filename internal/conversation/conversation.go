// Package conversation drives one tool-use conversation with an LLM from the
// user's first turn to a final response.
//
// A run alternates between sending the history to the model and dispatching
// the tool uses it asks for. Once the model stops calling tools the
// orchestrator sends one last instruction asking for a JSON summary, unless
// the run ended on its very first turn. Depth and history size are capped so a
// run that does not converge terminates.
//
// Transport failures never escape [Orchestrator.Run]: after the retry budget
// is spent the run ends with a degraded [Result] whose response carries a
// user-facing message.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/odab/internal/catalogue"
	"github.com/MrWong99/odab/internal/observe"
	"github.com/MrWong99/odab/internal/resilience"
	"github.com/MrWong99/odab/internal/tools"
	"github.com/MrWong99/odab/pkg/provider/llm"
	"github.com/MrWong99/odab/pkg/types"
)

// Defaults for [Config].
const (
	DefaultMaxTokens   = 4096
	DefaultMaxDepth    = 15
	DefaultMaxMessages = 40
)

// TimeoutMessage is the degraded response text after a timed-out request.
const TimeoutMessage = "request timed out, retry later"

var (
	// ErrTooManyMessages ends a run whose history outgrew the message cap.
	ErrTooManyMessages = errors.New("conversation: too many messages")

	// ErrEmptyInput is returned when the first turn has neither text nor image.
	ErrEmptyInput = errors.New("conversation: input has no text and no image")
)

// Sender performs one request/response exchange. *transport.Client
// implements it.
type Sender interface {
	Send(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Config bounds a run. Zero fields take the package defaults.
type Config struct {
	// Model overrides the provider's configured model.
	Model string

	// MaxTokens caps each completion.
	MaxTokens int

	// MaxDepth is the number of tool round-trips after which the current
	// response is returned as is.
	MaxDepth int

	// MaxMessages is the history size above which the run fails with
	// ErrTooManyMessages.
	MaxMessages int

	// MaxAttempts counts every try of one request, the first included.
	MaxAttempts int

	// RetryInitialInterval is the first back-off wait between attempts.
	RetryInitialInterval time.Duration

	// RunDeadline bounds a whole run. Zero means no bound beyond the
	// per-request timeout.
	RunDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = resilience.DefaultMaxAttempts
	}
	return c
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithBackOff replaces the exponential retry policy. newBackOff is called once
// per request.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *Orchestrator) {
		o.newBackOff = newBackOff
	}
}

// Orchestrator runs conversations. It holds no per-run state and is safe for
// concurrent use.
type Orchestrator struct {
	sender     Sender
	registry   *tools.Registry
	concepts   catalogue.Source
	cfg        Config
	metrics    *observe.Metrics
	newBackOff func() backoff.BackOff
}

// New returns an Orchestrator. concepts may be nil, in which case the summary
// instruction offers no concepts.
func New(sender Sender, registry *tools.Registry, concepts catalogue.Source, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sender:   sender,
		registry: registry,
		concepts: concepts,
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Input is the first user turn of a run.
type Input struct {
	// Text is the user's prompt. May be empty when Image is set.
	Text string

	// Image is an optional inline image sent after Text.
	Image *types.ImageBlock

	// SystemPrompt is sent with every request of the run.
	SystemPrompt string

	// AlwaysSummarize requests the summary turn even when the model answers
	// the first turn without calling a tool.
	AlwaysSummarize bool
}

func (in Input) message() types.Message {
	var blocks []types.ContentBlock
	if in.Text != "" {
		blocks = append(blocks, types.TextBlock{Text: in.Text})
	}
	if in.Image != nil {
		blocks = append(blocks, *in.Image)
	}
	return types.Message{Role: types.RoleUser, Content: blocks}
}

// State is the loop accumulator of one run.
type State struct {
	History     []types.Message
	Depth       int
	IsFirstTurn bool
}

// Result is the outcome of a run.
type Result struct {
	// RunID identifies the run in logs and traces.
	RunID string

	// Response is the final model response, or the synthetic degraded one.
	Response *llm.CompletionResponse

	// History is the full message list of the run.
	History []types.Message

	// Depth is the number of tool round-trips completed.
	Depth int

	// Requests counts every exchange attempted, retries included.
	Requests int

	// Summarised is true when Response answers the summary instruction.
	Summarised bool

	// DepthLimited is true when the depth cap ended the tool loop.
	DepthLimited bool

	// Degraded is true when a request failed after every attempt. Err then
	// holds the last transport error.
	Degraded bool
	Err      error
}

// Text returns the concatenated text blocks of Response.
func (r *Result) Text() string {
	if r.Response == nil {
		return ""
	}
	return r.Response.Text()
}

// Run drives one conversation. The only errors returned are ErrEmptyInput and
// ErrTooManyMessages; transport failures produce a degraded Result instead.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	first := in.message()
	if len(first.Content) == 0 {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}

	ctx, span := observe.StartSpan(ctx, "conversation.run",
		trace.WithAttributes(attribute.String("run.id", res.RunID)))
	defer span.End()

	if o.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunDeadline)
		defer cancel()
	}

	o.metrics.ActiveRuns.Add(ctx, 1)
	defer o.metrics.ActiveRuns.Add(ctx, -1)

	log := observe.Logger(ctx).With("run_id", res.RunID)
	st := &State{
		History:     []types.Message{first},
		IsFirstTurn: !in.AlwaysSummarize,
	}
	router := o.registry.NewRouter(tools.WithMetrics(o.metrics))

	outcome, err := o.loop(ctx, log, in.SystemPrompt, st, router, res)

	res.History = st.History
	res.Depth = st.Depth
	o.metrics.RecordRun(ctx, outcome, time.Since(start).Seconds(), st.Depth)
	span.SetAttributes(
		attribute.String("run.outcome", outcome),
		attribute.Int("run.depth", st.Depth),
		attribute.Int("run.requests", res.Requests),
	)
	if err != nil {
		observe.RecordError(span, err)
		log.Warn("conversation: run failed", "err", err, "depth", st.Depth, "messages", len(st.History))
		return nil, err
	}
	log.Info("conversation: run finished",
		"outcome", outcome,
		"depth", st.Depth,
		"requests", res.Requests,
		"duration", time.Since(start),
	)
	return res, nil
}

// loop runs the tool phase and, when due, the summary turn. It returns the
// run outcome label.
func (o *Orchestrator) loop(ctx context.Context, log *slog.Logger, system string, st *State, router *tools.Router, res *Result) (string, error) {
	for {
		resp, err := o.send(ctx, log, system, st, res)
		if err != nil {
			o.degrade(res, err)
			return "degraded", nil
		}

		msg, uses := inspect(resp)
		st.appendMessage(msg)
		for _, use := range uses {
			result := router.Dispatch(ctx, use)
			st.appendMessage(types.Message{Role: types.RoleUser, Content: []types.ContentBlock{result}})
		}

		// Stops before a further request once MaxDepth tool rounds ran, so at
		// most MaxDepth+1 requests are sent in the tool phase. A strict ">"
		// would allow one more round than the depth limit names.
		if st.Depth >= o.cfg.MaxDepth {
			log.Info("conversation: depth limit reached", "depth", st.Depth)
			res.Response = resp
			res.DepthLimited = true
			return "depth_limit", nil
		}
		if len(st.History) > o.cfg.MaxMessages {
			return "too_many_messages", fmt.Errorf("%w: %d > %d", ErrTooManyMessages, len(st.History), o.cfg.MaxMessages)
		}

		if len(uses) > 0 {
			st.Depth++
			st.IsFirstTurn = false
			continue
		}
		if st.IsFirstTurn {
			res.Response = resp
			return "completed", nil
		}
		break
	}

	st.appendMessage(types.NewUserText(SummaryInstruction(o.catalogue(ctx, log))))
	resp, err := o.send(ctx, log, system, st, res)
	if err != nil {
		o.degrade(res, err)
		return "degraded", nil
	}
	// Tool uses of the summary turn are kept in the history but not run.
	msg, uses := inspect(resp)
	st.appendMessage(msg)
	if len(uses) > 0 {
		log.Debug("conversation: ignoring tool uses in summary turn", "count", len(uses))
	}
	res.Response = resp
	res.Summarised = true
	return "summarised", nil
}

// send issues one request built from st, retrying per the config.
func (o *Orchestrator) send(ctx context.Context, log *slog.Logger, system string, st *State, res *Result) (*llm.CompletionResponse, error) {
	req := llm.CompletionRequest{
		Model:        o.cfg.Model,
		Messages:     slices.Clone(st.History),
		Tools:        o.registry.Definitions(),
		MaxTokens:    o.cfg.MaxTokens,
		SystemPrompt: system,
	}
	cfg := resilience.RetryConfig{
		MaxAttempts:     o.cfg.MaxAttempts,
		InitialInterval: o.cfg.RetryInitialInterval,
		NewBackOff:      o.newBackOff,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			kind := "other"
			if llm.IsTimeout(err) {
				kind = "timeout"
			}
			o.metrics.RecordRetry(ctx, kind)
			log.Warn("conversation: request failed, retrying",
				"attempt", attempt, "kind", kind, "wait", wait, "err", err)
		},
	}
	return resilience.Retry(ctx, cfg, func(ctx context.Context) (*llm.CompletionResponse, error) {
		res.Requests++
		return o.sender.Send(ctx, req)
	})
}

func (o *Orchestrator) degrade(res *Result, err error) {
	text := err.Error()
	if llm.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		text = TimeoutMessage
	}
	res.Degraded = true
	res.Err = err
	res.Response = &llm.CompletionResponse{
		Role:       types.RoleAssistant,
		Content:    []types.ContentBlock{types.TextBlock{Text: text}},
		StopReason: types.StopError,
	}
}

// catalogue loads the concepts for the summary instruction. A failing source
// yields an empty list.
func (o *Orchestrator) catalogue(ctx context.Context, log *slog.Logger) []catalogue.Concept {
	if o.concepts == nil {
		return nil
	}
	cs, err := o.concepts.Concepts(ctx)
	if err != nil {
		log.Warn("conversation: concept catalogue unavailable", "err", err)
		return nil
	}
	return cs
}

// inspect converts a response into the assistant history entry and the queue
// of tool uses to dispatch, in response order.
func inspect(resp *llm.CompletionResponse) (types.Message, []types.ToolUseBlock) {
	msg := types.Message{Role: types.RoleAssistant}
	var uses []types.ToolUseBlock
	for _, b := range resp.Content {
		switch v := b.(type) {
		case types.ToolUseBlock:
			msg.Content = append(msg.Content, v)
			uses = append(uses, v)
		case types.TextBlock:
			msg.Content = append(msg.Content, v)
		default:
			slog.Debug("conversation: dropping unexpected response block", "kind", b.Kind())
		}
	}
	return msg, uses
}

// appendMessage adds m to the history. Messages without content are skipped
// because providers reject them.
func (st *State) appendMessage(m types.Message) {
	if len(m.Content) == 0 {
		return
	}
	st.History = append(st.History, m)
}
