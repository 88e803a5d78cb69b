package wfs

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return StatusError(503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustionWrapsSourceUnavailable(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return StatusError(500)
	})
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return StatusError(404)
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
}

func TestRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			return StatusError(500)
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSourceUnavailable)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestRetryable_Classification(t *testing.T) {
	assert.True(t, Retryable(StatusError(500)))
	assert.True(t, Retryable(StatusError(429)))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.True(t, Retryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))

	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(StatusError(400)))
	assert.False(t, Retryable(errors.New("parse failure")))
}
