package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("store unavailable")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("cache-tier", CircuitBreakerConfig{FailureThreshold: 3})

	fail := func() error { return errBackend }
	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	// While open, calls are rejected without reaching the backend.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("open circuit must not invoke the backend")
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("cache-tier", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})

	if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("err = %v", err)
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe after cool-down: %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", got)
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("cache-tier", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	cb.Execute(func() error { return errBackend })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("probe err = %v", err)
	}
	if got := cb.GetState(); got != StateOpen {
		t.Errorf("state after failed probe = %v, want open", got)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("cache-tier", CircuitBreakerConfig{FailureThreshold: 1})
	cb.Execute(func() error { return errBackend })
	cb.Reset()
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("state after reset = %v, want closed", got)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "corpus-fetch", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errBackend
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	err := Retry(context.Background(), "corpus-fetch", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func() error { return errBackend })
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v, want wrapped backend error", err)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "state-save", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, "state-save", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("err = %v", err)
	}
}
