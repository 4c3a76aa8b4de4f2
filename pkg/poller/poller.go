// Package poller implements bounded long-polling: a fetch is retried a
// fixed number of times with a fixed wait between attempts, and the
// first non-empty result wins. Built on the standard library since the
// whole behavior is one select loop.
package poller

import (
	"context"
	"time"
)

// Fetch produces one poll result. ok reports whether the result is
// worth returning to the caller; a false result schedules another
// attempt.
type Fetch[T any] func(ctx context.Context) (result T, ok bool, err error)

// Poller retries a fetch up to Attempts times, waiting Interval between
// attempts.
type Poller struct {
	Attempts int
	Interval time.Duration
}

// New creates a Poller with the given bounds. Attempts below 1 is
// treated as a single attempt.
func New(attempts int, interval time.Duration) *Poller {
	if attempts < 1 {
		attempts = 1
	}
	return &Poller{Attempts: attempts, Interval: interval}
}

// Poll runs the fetch until it reports ok, the attempt bound is
// reached, or the context is cancelled. The first attempt runs
// immediately; the wait happens between attempts, not after the last,
// so the final empty result returns without delay. On exhaustion the
// last (empty) result is returned with a nil error.
func Poll[T any](ctx context.Context, p *Poller, fetch Fetch[T]) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, ok, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		if ok || attempt >= p.Attempts {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.Interval):
		}
	}
}
