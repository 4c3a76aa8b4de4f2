package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollReturnsFirstNonEmptyResult(t *testing.T) {
	p := New(3, time.Millisecond)

	calls := 0
	result, err := Poll(context.Background(), p, func(ctx context.Context) (string, bool, error) {
		calls++
		return "activity", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "activity", result)
	assert.Equal(t, 1, calls)
}

func TestPollRetriesUntilNonEmpty(t *testing.T) {
	p := New(3, time.Millisecond)

	calls := 0
	result, err := Poll(context.Background(), p, func(ctx context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "", false, nil
		}
		return "late", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "late", result)
	assert.Equal(t, 3, calls)
}

func TestPollExhaustsAttemptsAndReturnsEmpty(t *testing.T) {
	p := New(3, time.Millisecond)

	calls := 0
	result, err := Poll(context.Background(), p, func(ctx context.Context) (string, bool, error) {
		calls++
		return "", false, nil
	})

	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, 3, calls, "exhaustion should stop at the attempt bound")
}

func TestPollDoesNotWaitAfterLastAttempt(t *testing.T) {
	// A single empty attempt must return right away; with a 1h interval
	// any wait after the final attempt would hang the test.
	p := New(1, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := Poll(context.Background(), p, func(ctx context.Context) (int, bool, error) {
			return 0, false, nil
		})
		assert.NoError(t, err)
		assert.Zero(t, result)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not return")
	}
}

func TestPollStopsOnContextCancel(t *testing.T) {
	p := New(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Poll(ctx, p, func(ctx context.Context) (string, bool, error) {
			return "", false, nil
		})
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not observe cancellation")
	}
}

func TestPollPropagatesFetchError(t *testing.T) {
	p := New(3, time.Millisecond)

	wantErr := errors.New("graph unavailable")
	calls := 0
	_, err := Poll(context.Background(), p, func(ctx context.Context) (string, bool, error) {
		calls++
		return "", false, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls, "errors should not be retried")
}

func TestNewClampsAttempts(t *testing.T) {
	p := New(0, time.Millisecond)
	assert.Equal(t, 1, p.Attempts)
}
