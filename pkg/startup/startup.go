// Package startup retries dependency connections with fibonacci
// backoff so the service survives orchestrators that bring its
// backends up in parallel.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Retry runs fn until it succeeds or maxAttempts is exhausted, waiting
// fibonacci seconds (1, 1, 2, 3, 5, ...) between attempts. A
// non-positive maxAttempts means a single attempt.
func Retry(ctx context.Context, logger ectologger.Logger, maxAttempts int, name string, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	a, b := 1, 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		logger.WithContext(ctx).WithError(lastErr).Errorf("Failed to connect to %s (attempt %d/%d)", name, attempt, maxAttempts)

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("%s unavailable after %d attempts: %w", name, maxAttempts, lastErr)
}
