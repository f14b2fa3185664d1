package prioritizer

import (
	"testing"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

func TestPrioritizer_Order_RanksFasterPlatformFirst(t *testing.T) {
	p := New(nil)
	p.SetStrategy(SpeedFirst)

	for i := 0; i < 10; i++ {
		p.Record("fast", true, 50*time.Millisecond)
		p.Record("slow", true, 4*time.Second)
	}

	order := p.Order([]string{"fast", "slow"})
	if len(order) != 2 || order[0] != "fast" {
		t.Fatalf("expected fast platform ranked first under speed_first, got %v", order)
	}
}

func TestPrioritizer_Order_OnlyReturnsAvailable(t *testing.T) {
	p := New(nil)
	p.Record("youtube", true, time.Second)
	p.Record("rumble", true, time.Second)

	order := p.Order([]string{"rumble"})
	if len(order) != 1 || order[0] != "rumble" {
		t.Errorf("expected Order filtered to available platforms, got %v", order)
	}
}

func TestPrioritizer_Order_UnknownAvailablePlatformStillIncluded(t *testing.T) {
	p := New(nil)
	order := p.Order([]string{"never-recorded"})
	if len(order) != 1 || order[0] != "never-recorded" {
		t.Errorf("expected a platform with no recorded window to still appear, got %v", order)
	}
}

func TestPrioritizer_Snapshot(t *testing.T) {
	p := New(nil)
	if _, ok := p.Snapshot("nothing-yet"); ok {
		t.Error("expected Snapshot to report false for a platform with no observations")
	}

	p.Record("youtube", true, time.Second)
	snap, ok := p.Snapshot("youtube")
	if !ok {
		t.Fatal("expected Snapshot to report true after a recorded observation")
	}
	if snap.SuccessfulRequests != 1 {
		t.Errorf("expected 1 successful request, got %d", snap.SuccessfulRequests)
	}
}

func TestPrioritizer_UpdateHealth_AffectsReliability(t *testing.T) {
	p := New(nil)
	p.Record("youtube", true, time.Second)
	before, _ := p.Snapshot("youtube")

	p.UpdateHealth("youtube", videotypes.InstanceUnhealthy)
	after, _ := p.Snapshot("youtube")

	if after.ReliabilityScore >= before.ReliabilityScore {
		t.Errorf("expected reliability score to drop after marking unhealthy: before=%v after=%v", before.ReliabilityScore, after.ReliabilityScore)
	}
}

func TestPrioritizer_Summary_IncludesAllTrackedPlatforms(t *testing.T) {
	p := New(nil)
	p.Record("youtube", true, time.Second)
	p.Record("rumble", false, 2*time.Second)

	summary := p.Summary()
	if _, ok := summary["youtube"]; !ok {
		t.Error("expected youtube in Summary")
	}
	if _, ok := summary["rumble"]; !ok {
		t.Error("expected rumble in Summary")
	}
}
