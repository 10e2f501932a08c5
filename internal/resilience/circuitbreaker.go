// Package resilience protects calls to LLM backends: bounded retries with
// exponential back-off, a three-state circuit breaker, and failover across a
// primary and fallback providers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cooldown has passed.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// Name labels log lines.
	Name string

	// Threshold is the number of consecutive failures that opens the breaker.
	// Default: 5.
	Threshold int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close the
	// breaker again. Default: 3.
	Probes int

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inflight int // half-open probes started
	passed   int // half-open probes succeeded
}

// NewBreaker returns a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Do calls fn unless the breaker is open, and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(probe, err == nil)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.inflight >= b.cfg.Probes {
			return false, ErrCircuitOpen
		}
		b.inflight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) settle(probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case probe && !ok:
		b.trip()
	case probe:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.transition(StateClosed)
		}
	case ok:
		b.failures = 0
	default:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	}
}

// trip opens the breaker. b.mu must be held.
func (b *Breaker) trip() {
	b.openedAt = b.cfg.Now()
	slog.Warn("resilience: circuit opened", "name", b.cfg.Name, "failures", b.failures)
	b.transition(StateOpen)
}

// transition resets the per-state counters. b.mu must be held.
func (b *Breaker) transition(s State) {
	if s != StateOpen && b.state != s {
		slog.Info("resilience: circuit state changed", "name", b.cfg.Name, "from", b.state, "to", s)
	}
	b.state = s
	b.inflight, b.passed = 0, 0
	if s == StateClosed {
		b.failures = 0
	}
}

// State reports the current state. An open breaker whose cooldown has passed
// reports half-open; the transition itself happens on the next Do.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
