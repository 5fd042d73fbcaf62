package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return errBoom })
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Minute})
	failN(b, 2)
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %s", got)
	}
	failN(b, 1)
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", got)
	}

	var invoked bool
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Fatalf("open breaker must not invoke the call")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Minute})
	failN(b, 2)
	_ = b.Execute(context.Background(), func(context.Context) error { return nil })
	failN(b, 2)
	if got := b.State(); got != StateClosed {
		t.Fatalf("interleaved successes must keep the circuit closed, got %s", got)
	}
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 20 * time.Millisecond, MaxProbes: 2})
	failN(b, 1)
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}

	time.Sleep(30 * time.Millisecond)
	for i := 0; i < 2; i++ {
		if err := b.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful probes, got %s", got)
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 20 * time.Millisecond, MaxProbes: 2})
	failN(b, 1)
	time.Sleep(30 * time.Millisecond)
	failN(b, 1)
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected re-open after probe failure, got %s", got)
	}
}

func TestBreaker_RespectsCancelledContext(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Execute(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("cancelled call must not count against the breaker, got %s", got)
	}
}
