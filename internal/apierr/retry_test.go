package apierr_test

// Coverage Notes:
// - Tests verify retry count, shouldRetry filtering, context cancellation,
//   the nil-shouldRetry default, and config normalization.
// - Exact backoff timing is not tested (implementation detail), only
//   observable behavior.

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alnah/go-dub/internal/apierr"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("success on first try returns immediately", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		result, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Second},
			func() (string, error) {
				callCount++
				return "immediate", nil
			},
			func(error) bool { return true },
		)

		if err != nil {
			t.Errorf("RetryWithBackoff() unexpected error: %v", err)
		}
		if result != "immediate" {
			t.Errorf("RetryWithBackoff() = %q, want %q", result, "immediate")
		}
		if callCount != 1 {
			t.Errorf("fn called %d times, want 1", callCount)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		result, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			func() (int, error) {
				callCount++
				if callCount < 3 {
					return 0, errors.New("transient")
				}
				return 42, nil
			},
			func(error) bool { return true },
		)

		if err != nil {
			t.Errorf("RetryWithBackoff() unexpected error: %v", err)
		}
		if result != 42 {
			t.Errorf("RetryWithBackoff() = %d, want 42", result)
		}
		if callCount != 3 {
			t.Errorf("fn called %d times, want 3", callCount)
		}
	})

	t.Run("stops when shouldRetry returns false", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		permanent := errors.New("permanent")
		_, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			func() (string, error) {
				callCount++
				return "", permanent
			},
			func(error) bool { return false },
		)

		if !errors.Is(err, permanent) {
			t.Errorf("RetryWithBackoff() error = %v, want %v", err, permanent)
		}
		if callCount != 1 {
			t.Errorf("fn called %d times, want 1", callCount)
		}
	})

	t.Run("exhausts retries and wraps last error", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		transient := errors.New("still failing")
		_, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			func() (string, error) {
				callCount++
				return "", transient
			},
			func(error) bool { return true },
		)

		if !errors.Is(err, transient) {
			t.Errorf("RetryWithBackoff() error = %v, want wrapped %v", err, transient)
		}
		if callCount != 3 { // initial attempt + 2 retries
			t.Errorf("fn called %d times, want 3", callCount)
		}
	})

	t.Run("nil shouldRetry defaults to IsRetryable", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		_, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			func() (string, error) {
				callCount++
				if callCount == 1 {
					return "", fmt.Errorf("throttled: %w", apierr.ErrRateLimit)
				}
				return "", apierr.ErrAuthFailed
			},
			nil,
		)

		if !errors.Is(err, apierr.ErrAuthFailed) {
			t.Errorf("RetryWithBackoff() error = %v, want %v", err, apierr.ErrAuthFailed)
		}
		if callCount != 2 { // retried the rate limit, stopped on auth failure
			t.Errorf("fn called %d times, want 2", callCount)
		}
	})

	t.Run("context cancellation aborts before next attempt", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0
		_, err := apierr.RetryWithBackoff(
			ctx,
			apierr.RetryConfig{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour},
			func() (string, error) {
				callCount++
				cancel()
				return "", errors.New("transient")
			},
			func(error) bool { return true },
		)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("RetryWithBackoff() error = %v, want context.Canceled", err)
		}
		if callCount != 1 {
			t.Errorf("fn called %d times, want 1", callCount)
		}
	})

	t.Run("negative MaxRetries normalized to single attempt", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		_, err := apierr.RetryWithBackoff(
			context.Background(),
			apierr.RetryConfig{MaxRetries: -1},
			func() (string, error) {
				callCount++
				return "", errors.New("fail")
			},
			func(error) bool { return true },
		)

		if err == nil {
			t.Error("RetryWithBackoff() expected error, got nil")
		}
		if callCount != 1 {
			t.Errorf("fn called %d times, want 1", callCount)
		}
	})
}
