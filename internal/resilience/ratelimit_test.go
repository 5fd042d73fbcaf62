package resilience

import "testing"

func TestLimiter_AllowsBurstThenRefuses(t *testing.T) {
	l := NewLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("burst request %d refused", i)
		}
	}
	if l.Allow() {
		t.Fatalf("request beyond burst must be refused")
	}
}

func TestLimiter_BurstDefaultsToRate(t *testing.T) {
	l := NewLimiter(2, 0)
	if !l.Allow() || !l.Allow() {
		t.Fatalf("expected burst equal to the rate")
	}
	if l.Allow() {
		t.Fatalf("third immediate request must be refused")
	}
}

func TestLimiter_NilAllowsEverything(t *testing.T) {
	var l *Limiter
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("nil limiter must allow")
		}
	}
	if l.Limit() != 0 {
		t.Fatalf("nil limiter has no limit")
	}
}

func TestLimiter_ZeroRateIsNil(t *testing.T) {
	if l := NewLimiter(0, 10); l != nil {
		t.Fatalf("zero rate must disable the limiter")
	}
}
