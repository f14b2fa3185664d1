package peertube

import (
	"testing"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

func TestHealthTracker_NewInstanceStartsHealthy(t *testing.T) {
	tr := NewHealthTracker()
	if !tr.IsHealthy("https://tilvids.com") {
		t.Error("expected an untracked instance to be reported healthy")
	}
}

func TestHealthTracker_UnhealthyAfterThreshold(t *testing.T) {
	tr := NewHealthTracker()
	inst := "https://tilvids.com"

	for i := 0; i < unhealthyThreshold-1; i++ {
		tr.RecordFailure(inst, "network")
		if !tr.IsHealthy(inst) {
			t.Fatalf("expected instance still healthy after %d failures", i+1)
		}
	}

	tr.RecordFailure(inst, "network")
	if tr.IsHealthy(inst) {
		t.Error("expected instance unhealthy after crossing unhealthyThreshold")
	}
}

func TestHealthTracker_RecordSuccessResets(t *testing.T) {
	tr := NewHealthTracker()
	inst := "https://tilvids.com"

	for i := 0; i < unhealthyThreshold; i++ {
		tr.RecordFailure(inst, "network")
	}
	tr.RecordSuccess(inst)

	status := tr.Status()[inst]
	if status.Status != videotypes.InstanceHealthy || status.ConsecutiveFailures != 0 {
		t.Errorf("expected healthy with 0 consecutive failures after RecordSuccess, got %+v", status)
	}
}

func TestHealthTracker_ReadmitsAfterCooldown(t *testing.T) {
	tr := NewHealthTracker()
	inst := "https://tilvids.com"

	for i := 0; i < unhealthyThreshold; i++ {
		tr.RecordFailure(inst, "network")
	}
	if tr.IsHealthy(inst) {
		t.Fatal("expected unhealthy immediately after crossing threshold")
	}

	// Simulate cooldown elapsed by back-dating the last failure timestamp.
	past := time.Now().Add(-unhealthyCooldown - time.Second)
	tr.mu.Lock()
	tr.state[inst].LastFailureAt = &past
	tr.mu.Unlock()

	if !tr.IsHealthy(inst) {
		t.Error("expected instance readmitted once the cooldown has elapsed")
	}
}

func TestHealthTracker_HealthyInstances_FiltersUnhealthy(t *testing.T) {
	tr := NewHealthTracker()
	for i := 0; i < unhealthyThreshold; i++ {
		tr.RecordFailure("bad.example", "network")
	}
	tr.RecordSuccess("good.example")

	healthy := tr.HealthyInstances([]string{"bad.example", "good.example"})
	if len(healthy) != 1 || healthy[0] != "good.example" {
		t.Errorf("expected only good.example to remain healthy, got %v", healthy)
	}
}
