package resilience

import (
	"sync"
	"time"
)

// Limiter is a token bucket bounding the inbound query rate. A zero rate
// means unlimited.
type Limiter struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst capacity. A burst of zero defaults to the rate.
func NewLimiter(rps, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return &Limiter{
		rate:       float64(rps),
		capacity:   float64(burst),
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available. A nil limiter allows everything.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Limit returns the configured rate in requests per second.
func (l *Limiter) Limit() int {
	if l == nil {
		return 0
	}
	return int(l.rate)
}

// Remaining returns the currently available tokens, rounded down.
func (l *Limiter) Remaining() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return int(l.tokens)
}

func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.rate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}
