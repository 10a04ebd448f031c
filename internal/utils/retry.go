package utils

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig controls exponential backoff for transient failures.
type RetryConfig struct {
	MaxRetries    int           `yaml:"maxRetries"`
	InitialDelay  time.Duration `yaml:"initialDelay"`
	MaxDelay      time.Duration `yaml:"maxDelay"`
	BackoffFactor float64       `yaml:"backoffFactor"`
}

// DefaultRetryConfig returns the standard backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Delay returns the backoff before the given retry attempt (1-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	delay := time.Duration(d)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Retry runs op, retrying with exponential backoff until it succeeds, the
// retry budget is exhausted, or the context is cancelled.
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	lastErr := op()
	if lastErr == nil {
		return nil
	}

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		delay := cfg.Delay(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("giving up after %d retries: %w", cfg.MaxRetries, lastErr)
}
