package resilience

import (
	"sync"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

// BreakerConfig tunes one Breaker's state machine. Zero values are replaced
// by the spec defaults in NewBreaker.
type BreakerConfig struct {
	FailureThreshold int           // default 5
	RecoveryTimeout  time.Duration // default 60s
	SuccessThreshold int           // default 3
	CallTimeout      time.Duration // default 30s
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

// Breaker is a per-service (or per-instance) circuit breaker, exactly the
// state machine spec.md §3 describes: closed -> open on failure_threshold,
// open -> half_open after recovery_timeout, half_open -> closed on
// success_threshold successes, half_open -> open on any failure. While
// open, calls fail fast without touching the backend.
type Breaker struct {
	name string

	mu                     sync.Mutex
	state                  videotypes.BreakerState
	failureCount           int
	successCountInHalfOpen int
	openedAt               time.Time

	cfg BreakerConfig
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		name:  name,
		state: videotypes.BreakerClosed,
		cfg:   cfg.withDefaults(),
	}
}

// Allow reports whether a call may proceed right now, transitioning
// open->half_open when the recovery timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case videotypes.BreakerClosed:
		return true
	case videotypes.BreakerOpen:
		if time.Since(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = videotypes.BreakerHalfOpen
			b.successCountInHalfOpen = 0
			return true
		}
		return false
	case videotypes.BreakerHalfOpen:
		// Half-open admits every call; concurrent trial calls are not
		// limited. RecordSuccess/RecordFailure move the breaker out of it.
		return true
	default:
		return true
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case videotypes.BreakerHalfOpen:
		b.successCountInHalfOpen++
		if b.successCountInHalfOpen >= b.cfg.SuccessThreshold {
			b.state = videotypes.BreakerClosed
			b.failureCount = 0
			b.successCountInHalfOpen = 0
		}
	case videotypes.BreakerClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case videotypes.BreakerClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = videotypes.BreakerOpen
			b.openedAt = time.Now()
		}
	case videotypes.BreakerHalfOpen:
		b.state = videotypes.BreakerOpen
		b.openedAt = time.Now()
		b.successCountInHalfOpen = 0
	}
}

// State returns a point-in-time snapshot for reporting, taken under lock
// per spec §5's "snapshots are taken under lock" rule.
func (b *Breaker) State() videotypes.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := videotypes.CircuitBreakerState{
		State:                  b.state,
		FailureCount:           b.failureCount,
		SuccessCountInHalfOpen: b.successCountInHalfOpen,
	}
	if !b.openedAt.IsZero() {
		t := b.openedAt
		snap.OpenedAt = &t
	}
	return snap
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = videotypes.BreakerClosed
	b.failureCount = 0
	b.successCountInHalfOpen = 0
	b.openedAt = time.Time{}
}

func (b *Breaker) CallTimeout() time.Duration { return b.cfg.CallTimeout }
