package wfs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// RetryPolicy is the single retry policy shared by all network operations:
// bounded attempts, exponential backoff with a cap, and a fixed
// classification of retryable failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
}

// DefaultRetryPolicy mirrors the source service's tolerance: three attempts
// with a 1s base backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// retryableStatusError marks an HTTP status that should be retried.
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("wfs: retryable HTTP status %d", e.status)
}

// Retryable classifies an error as transient. Timeouts, connection-level
// failures, and 5xx/429 statuses are retryable; everything else is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *retryableStatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// Context deadline on the per-request timeout counts as a retryable
	// failure for that call; run-level cancellation does not, but the Do
	// loop checks the caller's context separately.
	return errors.Is(err, context.DeadlineExceeded)
}

// StatusError converts a non-2xx HTTP status into an error, marking 5xx and
// 429 as retryable.
func StatusError(status int) error {
	if status >= 500 || status == http.StatusTooManyRequests {
		return &retryableStatusError{status: status}
	}
	return fmt.Errorf("wfs: HTTP status %d", status)
}

// Do runs fn under the policy. Non-retryable errors return immediately;
// retryable errors are retried with exponential backoff until the attempt
// budget or the context is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if werr := p.wait(ctx, attempt); werr != nil {
				return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %d attempts: %w", ErrSourceUnavailable, attempts, err)
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
