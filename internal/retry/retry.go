// Package retry implements the full-jitter exponential backoff helper
// shared by the ingestion service's publish path and the request
// gateway's upstream calls.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Event describes one retry attempt, passed to an optional onRetry
// callback for logging.
type Event struct {
	Attempt  int
	Attempts int
	DelayMs  int64
	Err      error
}

// Permanent wraps an error that must not be retried — Do returns it
// immediately (unwrapped) instead of spending further attempts. Used by
// the request gateway's upstream call to stop on non-retryable HTTP
// statuses.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Options configures a retry run.
type Options struct {
	Attempts    int
	BaseDelayMs int64
	OnRetry     func(Event)
}

// Do runs fn up to opts.Attempts times, sleeping a full-jitter exponential
// backoff between attempts based on opts.BaseDelayMs. It returns the
// result of the last attempt; on exhaustion it returns the last error.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	base := time.Duration(opts.BaseDelayMs) * time.Millisecond
	if base <= 0 {
		base = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if perm, ok := lastErr.(*Permanent); ok {
			return perm.Err
		}
		if attempt == attempts {
			break
		}

		delay := fullJitterDelay(base, attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(Event{Attempt: attempt, Attempts: attempts, DelayMs: delay.Milliseconds(), Err: lastErr})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// fullJitterDelay computes backoff.ExponentialBackOff's capped exponential
// ceiling for the given attempt, then applies full jitter: a uniform
// random draw in [0, ceiling).
func fullJitterDelay(base time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0 // we apply jitter ourselves, below

	ceiling := base
	for i := 1; i < attempt; i++ {
		ceiling = time.Duration(float64(ceiling) * b.Multiplier)
		if ceiling > b.MaxInterval {
			ceiling = b.MaxInterval
			break
		}
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}
