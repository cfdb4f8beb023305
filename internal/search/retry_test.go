package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func(int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SucceedsOnNthAttempt(t *testing.T) {
	var calls atomic.Int32
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
	err := RetryWithBackoff(context.Background(), cfg, func(int) error {
		n := calls.Add(1)
		if n < 3 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestRetryWithBackoff_ExhaustsAllAttemptsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
	var attempts []int
	err := RetryWithBackoff(context.Background(), cfg, func(attempt int) error {
		attempts = append(attempts, attempt)
		return fmt.Errorf("attempt %d failed", attempt)
	})
	if err == nil || err.Error() != "attempt 3 failed" {
		t.Fatalf("expected last error, got %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Fatalf("unexpected attempts %v", attempts)
	}
}

func TestRetryWithBackoff_RetriesNonNetworkErrors(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
	calls := 0
	_ = RetryWithBackoff(context.Background(), cfg, func(int) error {
		calls++
		return errors.New("graphql response has no data")
	})
	if calls != 3 {
		t.Fatalf("malformed payloads must be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoff_FixedDelayDoesNotGrow(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, InitialDelay: 20 * time.Millisecond, Multiplier: 1}
	var stamps []time.Time
	_ = RetryWithBackoff(context.Background(), cfg, func(int) error {
		stamps = append(stamps, time.Now())
		return errors.New("down")
	})
	if len(stamps) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < 20*time.Millisecond {
			t.Fatalf("gap %d too short: %v", i, gap)
		}
		if gap > 200*time.Millisecond {
			t.Fatalf("gap %d grew unexpectedly: %v", i, gap)
		}
	}
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, Multiplier: 1}
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(ctx, cfg, func(int) error {
		calls++
		if calls == 1 {
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
		}
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("cancellation did not interrupt the retry wait")
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryWithBackoff(context.Background(), RetryConfig{}, func(int) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestApplyJitterStaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := applyJitter(base)
		if got < 75*time.Millisecond || got >= 125*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestDefaultRetryConfigIsFixedTwoSeconds(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 2*time.Second || cfg.Multiplier != 1 || cfg.Jitter {
		t.Fatalf("unexpected default retry config %+v", cfg)
	}
}
