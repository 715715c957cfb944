package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("always fails")
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("Do() = nil, want error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("op called %d times, want exactly 3", calls)
	}
}

func TestDoValueFallback(t *testing.T) {
	got, ok := DoValue(context.Background(), 2, time.Millisecond, func() (string, error) {
		return "", errors.New("nope")
	}, "fallback")
	if ok {
		t.Error("ok = true, want false on exhaustion")
	}
	if got != "fallback" {
		t.Errorf("value = %q, want fallback", got)
	}
}

func TestDoValueSuccess(t *testing.T) {
	got, ok := DoValue(context.Background(), 2, time.Millisecond, func() (string, error) {
		return "address", nil
	}, "fallback")
	if !ok {
		t.Error("ok = false, want true")
	}
	if got != "address" {
		t.Errorf("value = %q, want address", got)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, 5, time.Second, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("Do() = nil, want context error")
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1 before the canceled wait", calls)
	}
}
