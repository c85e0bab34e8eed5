package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes the backoff schedule for embedding-service calls.
type RetryConfig struct {
	MaxRetries   int           // retries after the initial attempt
	InitialDelay time.Duration // wait before the first retry
	MaxDelay     time.Duration // ceiling the growing delay never exceeds
	Multiplier   float64       // delay growth factor per retry
	Jitter       bool          // randomize waits to spread concurrent callers
}

// DefaultRetryConfig spreads four attempts over roughly twenty seconds,
// which rides out the restart of a local embedding endpoint.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry runs fn until it succeeds or the schedule is exhausted.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult runs fn with exponential backoff and returns the value
// of the first successful attempt. Context cancellation wins at every
// point, including mid-wait; fn never runs on a dead context.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt == cfg.MaxRetries {
			return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		if err := sleep(ctx, withJitter(delay, cfg.Jitter)); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// withJitter scales d by a random factor in [0.5, 1.0).
func withJitter(d time.Duration, enabled bool) time.Duration {
	if !enabled {
		return d
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()/2))
}

// sleep blocks for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
