package search

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig controls RetryWithBackoff. Multiplier 1 gives a fixed delay.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig returns the upstream catalog policy: 3 attempts, a fixed
// 2s pause between them, no jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     2 * time.Second,
		Multiplier:   1,
	}
}

// RetryWithBackoff calls fn until it succeeds or MaxAttempts is reached,
// sleeping between attempts. It returns nil on first success, or the last
// error if all attempts fail. Context cancellation between attempts is respected.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(attempt + 1)
		if lastErr == nil {
			return nil
		}

		// The caller gave up; the error is not the upstream's fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(lastErr, ctxErr)
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = applyJitter(wait)
		}
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(lastErr, ctx.Err())
			case <-timer.C:
			}
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// applyJitter adds ±25% randomization to duration to prevent thundering herd.
func applyJitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}
