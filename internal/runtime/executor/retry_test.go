package executor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
		MaxRetries:   maxRetries,
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableStatus(code) {
			t.Errorf("IsRetryableStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{0, 200, 400, 401, 403, 404, 529} {
		if IsRetryableStatus(code) {
			t.Errorf("IsRetryableStatus(%d) = true, want false", code)
		}
	}
}

func TestCalculateBackoffGrowth(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 4; attempt++ {
		delay := CalculateBackoff(cfg, attempt, nil)
		if delay <= prev {
			t.Errorf("attempt %d delay %v not greater than previous %v", attempt, delay, prev)
		}
		prev = delay
	}

	if delay := CalculateBackoff(cfg, 20, nil); delay > cfg.MaxDelay {
		t.Errorf("delay %v exceeds max %v", delay, cfg.MaxDelay)
	}
}

func TestCalculateBackoffServerDelayWins(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.JitterFactor = 0

	serverDelay := 7 * time.Second
	if delay := CalculateBackoff(cfg, 0, &serverDelay); delay != serverDelay {
		t.Errorf("delay = %v, want server-provided %v", delay, serverDelay)
	}
}

func TestCalculateBackoffFloor(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Microsecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
	if delay := CalculateBackoff(cfg, 0, nil); delay < 100*time.Millisecond {
		t.Errorf("delay = %v, want at least the 100ms floor", delay)
	}
}

func TestExecuteWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastRetry(3), func() (int, *time.Duration, error) {
		calls++
		if calls < 3 {
			return 503, nil, errors.New("unavailable")
		}
		return 200, nil, nil
	})

	if err != nil {
		t.Fatalf("ExecuteWithRetry failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	wantErr := errors.New("bad request")
	err := ExecuteWithRetry(context.Background(), fastRetry(3), func() (int, *time.Duration, error) {
		calls++
		return 400, nil, wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastRetry(2), func() (int, *time.Duration, error) {
		calls++
		return 500, nil, errors.New("persistent")
	})

	if err == nil {
		t.Fatal("ExecuteWithRetry succeeded, want error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial attempt + 2 retries)", calls)
	}
}

func TestExecuteWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := ExecuteWithRetry(ctx, fastRetry(5), func() (int, *time.Duration, error) {
		calls++
		cancel()
		return 503, nil, errors.New("unavailable")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSleepWithContext(t *testing.T) {
	if !SleepWithContext(context.Background(), time.Millisecond) {
		t.Error("uninterrupted sleep reported cancellation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if SleepWithContext(ctx, time.Minute) {
		t.Error("cancelled sleep reported completion")
	}
}
