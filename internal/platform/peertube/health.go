package peertube

import (
	"sync"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

const (
	unhealthyThreshold = 3
	unhealthyCooldown   = 5 * time.Minute
)

// HealthTracker is the Instance Health Tracker (spec.md §4.F): per-instance
// consecutive-failure counting that excludes an instance from fan-out for
// unhealthyCooldown once it crosses unhealthyThreshold consecutive
// failures. Grounded directly on
// original_source/src/platforms/peertube.py's InstanceHealthTracker.
type HealthTracker struct {
	mu    sync.Mutex
	state map[string]*videotypes.InstanceHealth
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{state: make(map[string]*videotypes.InstanceHealth)}
}

func (t *HealthTracker) entry(instance string) *videotypes.InstanceHealth {
	h, ok := t.state[instance]
	if !ok {
		h = &videotypes.InstanceHealth{Status: videotypes.InstanceHealthy}
		t.state[instance] = h
	}
	return h
}

func (t *HealthTracker) RecordSuccess(instance string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.entry(instance)
	now := time.Now()
	h.ConsecutiveFailures = 0
	h.LastSuccessAt = &now
	h.Status = videotypes.InstanceHealthy
}

func (t *HealthTracker) RecordFailure(instance, errorCategory string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.entry(instance)
	now := time.Now()
	h.ConsecutiveFailures++
	h.LastFailureAt = &now
	h.LastErrorCategory = errorCategory
	if h.ConsecutiveFailures >= unhealthyThreshold {
		h.Status = videotypes.InstanceUnhealthy
	} else {
		h.Status = videotypes.InstanceDegraded
	}
}

// IsHealthy reports whether instance may currently be used. An unhealthy
// instance is re-admitted once unhealthyCooldown has elapsed since its last
// failure, per the invariant in videotypes.InstanceHealth's doc comment.
func (t *HealthTracker) IsHealthy(instance string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.state[instance]
	if !ok {
		return true
	}
	if h.Status != videotypes.InstanceUnhealthy {
		return true
	}
	if h.LastFailureAt != nil && time.Since(*h.LastFailureAt) >= unhealthyCooldown {
		h.Status = videotypes.InstanceDegraded
		h.ConsecutiveFailures = unhealthyThreshold - 1
		return true
	}
	return false
}

// HealthyInstances filters instances down to those IsHealthy currently
// allows.
func (t *HealthTracker) HealthyInstances(instances []string) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		if t.IsHealthy(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// Status returns a snapshot of every tracked instance's health, for
// method-call reporting.
func (t *HealthTracker) Status() map[string]videotypes.InstanceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]videotypes.InstanceHealth, len(t.state))
	for k, v := range t.state {
		out[k] = *v
	}
	return out
}
