package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxAttempts is the attempt budget of [Retry] when none is configured.
const DefaultMaxAttempts = 3

// RetryConfig bounds [Retry].
type RetryConfig struct {
	// MaxAttempts counts the first try. Default: 3.
	MaxAttempts int

	// InitialInterval is the first wait of the exponential policy. Default:
	// 500ms.
	InitialInterval time.Duration

	// MaxInterval caps a single wait. Default: 10s.
	MaxInterval time.Duration

	// NewBackOff overrides the exponential policy. It is called once per Retry
	// because back-off policies keep state.
	NewBackOff func() backoff.BackOff

	// OnRetry runs before each wait. attempt is the number of the try that
	// just failed, starting at 1.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
	return c
}

func (c RetryConfig) backOff() backoff.BackOff {
	if c.NewBackOff != nil {
		return c.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	return b
}

// Permanent marks err as not worth retrying. Retry returns the unwrapped err.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry calls op until it succeeds, returns a [Permanent] error, ctx is done or
// the attempt budget is spent. The last error is returned as is.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	attempt := 0
	out, err := backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err, wait)
			}
		}),
	)
	// The library keeps the wrapper when the last try is permanent.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return out, err
}
