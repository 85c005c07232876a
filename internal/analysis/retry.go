package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sumgit/sumgit/internal/port"
)

// RetryConfig bounds the retry wrapper around a single extraction call.
type RetryConfig struct {
	MaxRetries int           // retries after the initial attempt
	BaseDelay  time.Duration // backoff grows as BaseDelay * attempt plus jitter
}

// DefaultRetryConfig matches the production policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second}
}

// WithRetry runs op, retrying classified-retryable failures with linear
// backoff plus jitter. Fatal classifications propagate immediately. After
// MaxRetries failed attempts one final attempt is made; its error is
// wrapped with the full attempt count.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !port.IsRetryable(err) {
			return zero, err
		}

		backoff := cfg.BaseDelay*time.Duration(attempt) +
			time.Duration(rand.Int63n(int64(cfg.BaseDelay)/2+1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	result, err := op(ctx)
	if err == nil {
		return result, nil
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxRetries+1, err)
}
