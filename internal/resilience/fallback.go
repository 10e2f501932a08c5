package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Group] failed or was
// skipped by its breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group is an ordered list of interchangeable values, each behind its own
// [Breaker]. Members are tried in order until one succeeds.
type Group[T any] struct {
	members []member[T]
	cfg     BreakerConfig
}

// NewGroup returns a Group whose first member is primary. cfg is copied into
// every member's breaker with Name set to the member name.
func NewGroup[T any](primaryName string, primary T, cfg BreakerConfig) *Group[T] {
	g := &Group[T]{cfg: cfg}
	g.Add(primaryName, primary)
	return g
}

// Add appends a fallback member. Not safe to call concurrently with [Do].
func (g *Group[T]) Add(name string, v T) {
	cfg := g.cfg
	cfg.Name = name
	g.members = append(g.members, member[T]{name: name, value: v, breaker: NewBreaker(cfg)})
}

// Names returns the member names in try order.
func (g *Group[T]) Names() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

// Primary returns the first member.
func (g *Group[T]) Primary() T {
	return g.members[0].value
}

// Do calls fn with each member in turn and returns the first success. It stops
// early once ctx is done. When every member fails the error wraps
// [ErrAllFailed] and the last member error.
func Do[T, R any](ctx context.Context, g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, m := range g.members {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		var out R
		err := m.breaker.Do(func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("resilience: skipping member with open circuit", "member", m.name)
			continue
		}
		slog.Warn("resilience: member failed, trying next", "member", m.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
