package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// S4: Breaker opens. 5 consecutive failures (default threshold) on service
// X. The 6th call returns CircuitOpen fast; after recovery_timeout the
// breaker is half_open; 3 successes return it to closed.
func TestBreaker_S4_OpensAndRecovers(t *testing.T) {
	b := NewBreaker("X", BreakerConfig{RecoveryTimeout: 10 * time.Millisecond})

	for i := 0; i < 5; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
	}

	assert.Equal(t, videotypes.BreakerOpen, b.State().State)

	start := time.Now()
	assert.False(t, b.Allow())
	assert.Less(t, time.Since(start), 10*time.Millisecond, "invariant 2: open breaker must reject in well under 10ms")

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow(), "breaker should transition to half_open once recovery_timeout elapses")
	assert.Equal(t, videotypes.BreakerHalfOpen, b.State().State)

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, videotypes.BreakerHalfOpen, b.State().State)
	b.RecordSuccess()
	assert.Equal(t, videotypes.BreakerClosed, b.State().State)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("Y", BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Millisecond})
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, videotypes.BreakerOpen, b.State().State)

	time.Sleep(2 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, videotypes.BreakerHalfOpen, b.State().State)

	b.RecordFailure()
	assert.Equal(t, videotypes.BreakerOpen, b.State().State)
}
