// Package executor provides runtime support for calls to the upstream AI
// provider. This file implements exponential backoff retry with jitter.
//
// The relay core performs no retries of its own; this is the opt-in outer
// resilience layer wrapped around the upstream invoker.
package executor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	// InitialDelay is the base delay for the first retry.
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
	// Multiplier is the exponential factor for each retry.
	Multiplier float64
	// JitterFactor is the random jitter factor (0.0-1.0).
	JitterFactor float64
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
}

// DefaultRetryConfig returns sensible defaults for upstream retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		MaxRetries:   3,
	}
}

var (
	retryRand      = rand.New(rand.NewSource(time.Now().UnixNano()))
	retryRandMutex sync.Mutex
)

// CalculateBackoff computes the delay for a given retry attempt. If the
// upstream supplied a Retry-After delay it takes precedence, with jitter
// applied either way.
func CalculateBackoff(cfg RetryConfig, attempt int, serverDelay *time.Duration) time.Duration {
	var baseDelay time.Duration

	if serverDelay != nil && *serverDelay > 0 {
		baseDelay = *serverDelay
	} else {
		delaySeconds := cfg.InitialDelay.Seconds() * math.Pow(cfg.Multiplier, float64(attempt))
		baseDelay = time.Duration(delaySeconds * float64(time.Second))
		if baseDelay > cfg.MaxDelay {
			baseDelay = cfg.MaxDelay
		}
	}

	if cfg.JitterFactor > 0 {
		retryRandMutex.Lock()
		jitter := (retryRand.Float64()*2 - 1) * cfg.JitterFactor
		retryRandMutex.Unlock()
		baseDelay = time.Duration(float64(baseDelay) * (1 + jitter))
	}

	if baseDelay < 100*time.Millisecond {
		baseDelay = 100 * time.Millisecond
	}

	return baseDelay
}

// SleepWithContext sleeps for the specified duration, returning early if the
// context is cancelled. Returns true if the sleep completed.
func SleepWithContext(ctx context.Context, duration time.Duration) bool {
	if ctx == nil {
		time.Sleep(duration)
		return true
	}

	select {
	case <-time.After(duration):
		return true
	case <-ctx.Done():
		return false
	}
}

// IsRetryableStatus reports whether an HTTP status code is worth retrying.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// RetryableFunc is one attempt of a retryable operation. It reports the
// upstream status code (0 when no response was received) and an optional
// server-suggested retry delay.
type RetryableFunc func() (statusCode int, retryAfter *time.Duration, err error)

// ExecuteWithRetry runs fn, retrying on retryable status codes with
// exponential backoff until cfg.MaxRetries is exhausted or the context ends.
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, fn RetryableFunc) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		statusCode, retryAfter, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableStatus(statusCode) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		delay := CalculateBackoff(cfg, attempt, retryAfter)
		if !SleepWithContext(ctx, delay) {
			return ctx.Err()
		}
	}

	return lastErr
}
