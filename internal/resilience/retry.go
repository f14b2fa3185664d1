package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tributary-ai/videofed/internal/platformerr"
)

// Policy is the retry policy, spec.md §4.B's default: 3 attempts, 1s base
// delay, 60s max delay, exponential base 2, with +/-25% jitter applied to
// every computed delay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Base        float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Base:        2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	return p
}

// Delay exposes the backoff formula for callers outside this package that
// need the same capped-exponential schedule without going through
// WithRetry (the Health Monitor's recovery scheduler, spec.md §4.I).
func (p Policy) Delay(attempt int) time.Duration {
	return p.withDefaults().delay(attempt)
}

// delay computes min(base * pow(base, attempt), maxDelay) with +/-25%
// jitter, exactly spec.md §4.B's formula.
func (p Policy) delay(attempt int) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(p.Base, float64(attempt))
	if capped := float64(p.MaxDelay); raw > capped {
		raw = capped
	}
	jitter := 0.75 + rand.Float64()*0.5 // [0.75, 1.25)
	return time.Duration(raw * jitter)
}

// WithRetry executes fn, retrying on categorized failures per policy. Only
// {Network, Timeout, Server5xx, RateLimit} are retried; {Auth, BadRequest,
// CircuitOpen, NotFound, Unknown} are returned immediately. When breaker is
// non-nil, each attempt first checks Allow() and fails fast with
// CircuitOpen if the breaker rejects it, and records the outcome on the
// breaker after every attempt.
//
// There is deliberately no synchronous (context-less) variant: every call
// site in this repo already carries a context, so the original
// implementation's unused sync retry path has no reason to exist here
// (spec.md §9, open question 2).
func WithRetry(ctx context.Context, policy Policy, breaker *Breaker, fn func(context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if breaker != nil && !breaker.Allow() {
			return platformerr.New(platformerr.CircuitOpen, breaker.name, "circuit breaker is open", nil)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if breaker != nil {
			callCtx, cancel = context.WithTimeout(ctx, breaker.CallTimeout())
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return nil
		}

		lastErr = err
		if breaker != nil {
			breaker.RecordFailure()
		}

		pe, ok := platformerr.As(err)
		if !ok || !pe.Category.Retryable() {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}

	return fmt.Errorf("resilience: retries exhausted after %d attempts: %w", policy.MaxAttempts, lastErr)
}
