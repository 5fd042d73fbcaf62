// Package resilience guards calls to remote collaborators: a circuit
// breaker stops hammering an endpoint that keeps failing, and a token
// bucket bounds the inbound query rate.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the current mode of a circuit breaker.
type BreakerState string

const (
	// StateClosed allows calls through.
	StateClosed BreakerState = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen BreakerState = "open"
	// StateHalfOpen admits a bounded number of probe calls.
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive failure count that opens the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// MaxProbes is the number of half-open probe calls admitted; that many
	// consecutive successes close the circuit again.
	MaxProbes int
}

// DefaultBreakerConfig returns the settings used for collaborator clients.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
		MaxProbes:   2,
	}
}

// Breaker is a consecutive-failure circuit breaker. A failing collaborator
// trips it open; after the cooldown a few probe calls decide whether it
// closes again or re-opens.
type Breaker struct {
	mu     sync.Mutex
	config BreakerConfig

	state       BreakerState
	failures    int
	successes   int
	probes      int
	openUntil   time.Time
	lastChanged time.Time
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 2
	}
	return &Breaker{
		config:      config,
		state:       StateClosed,
		lastChanged: time.Now(),
	}
}

// Execute runs fn under breaker protection. A rejected call returns
// ErrCircuitOpen without invoking fn; an admitted call's outcome feeds the
// breaker state.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if now.After(b.openUntil) {
			b.transition(StateHalfOpen, now)
			b.probes++
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes < b.config.MaxProbes {
			b.probes++
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if err != nil {
		b.failures++
		b.successes = 0
		switch b.state {
		case StateHalfOpen:
			b.transition(StateOpen, now)
		case StateClosed:
			if b.failures >= b.config.MaxFailures {
				b.transition(StateOpen, now)
			}
		}
		return
	}

	b.successes++
	b.failures = 0
	if b.state == StateHalfOpen && b.successes >= b.config.MaxProbes {
		b.transition(StateClosed, now)
	}
}

func (b *Breaker) transition(next BreakerState, now time.Time) {
	if b.state == next {
		return
	}
	b.state = next
	b.lastChanged = now
	b.failures = 0
	b.successes = 0
	b.probes = 0
	if next == StateOpen {
		b.openUntil = now.Add(b.config.Cooldown)
	} else {
		b.openUntil = time.Time{}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed, time.Now())
}
