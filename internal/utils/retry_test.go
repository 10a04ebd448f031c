package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	boom := errors.New("boom")
	err := Retry(context.Background(), cfg, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 10, InitialDelay: time.Second, MaxDelay: 4 * time.Second, BackoffFactor: 2}
	if d := cfg.Delay(8); d != 4*time.Second {
		t.Fatalf("expected capped delay, got %v", d)
	}
	if d := cfg.Delay(1); d != time.Second {
		t.Fatalf("expected initial delay, got %v", d)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 50 * time.Millisecond, BackoffFactor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, cfg, func() error { return errors.New("always") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
