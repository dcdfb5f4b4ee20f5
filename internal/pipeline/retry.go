package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff. Only
// the batch layer retries; the core pipeline never does.
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64 // 0.0 to 1.0, fraction of delay to randomize
}

// DefaultOCRRetryConfig is tuned for transient document-analysis
// failures.
var DefaultOCRRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialDelay:   2 * time.Second,
	MaxDelay:       20 * time.Second,
	BackoffFactor:  2.0,
	JitterFraction: 0.2,
}

// WithRetry executes fn with exponential backoff + jitter. It stops on
// success, on a non-retryable *Error, on context cancellation, or when
// attempts are exhausted.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perr *Error
		if errors.As(err, &perr) && !perr.Retryable {
			return zero, err
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
		if cfg.JitterFraction > 0 {
			jitter := delay * cfg.JitterFraction * (rand.Float64()*2 - 1)
			delay += jitter
			if delay < 0 {
				delay = float64(cfg.InitialDelay)
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(delay)):
		}
	}

	return zero, lastErr
}
