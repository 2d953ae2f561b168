package utils_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pedalhouse/bikestock_backend/utils"
)

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := utils.RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
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
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still broken")
	err := utils.RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("expected attempt count in message, got %q", err.Error())
	}
}

func TestRetryWithBackoff_DelaysDouble(t *testing.T) {
	base := 20 * time.Millisecond
	start := time.Now()
	_ = utils.RetryWithBackoff(context.Background(), 3, base, func() error {
		return errors.New("nope")
	})
	elapsed := time.Since(start)

	// Two sleeps: base + 2*base. No sleep after the final attempt.
	if elapsed < 3*base {
		t.Errorf("expected at least %v of backoff, elapsed %v", 3*base, elapsed)
	}
	if elapsed > 7*base {
		t.Errorf("backoff took suspiciously long: %v (did the final attempt sleep?)", elapsed)
	}
}

func TestRetryWithBackoff_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := utils.RetryWithBackoff(ctx, 5, time.Minute, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}
