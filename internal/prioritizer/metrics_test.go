package prioritizer

import (
	"testing"
	"time"
)

func TestWindow_ResponseTimeScore(t *testing.T) {
	w := newWindow()
	if got := w.responseTimeScore(); got != 1.0 {
		t.Errorf("expected score 1.0 with no samples, got %v", got)
	}

	w.record(true, responseTimeThreshold)
	if got := w.responseTimeScore(); got <= 0 || got >= 1 {
		t.Errorf("expected score in (0,1) at the threshold, got %v", got)
	}
}

func TestWindow_SuccessRateScore_NeutralBeforeMinSamples(t *testing.T) {
	w := newWindow()
	for i := 0; i < minSamplesForSuccessRate-1; i++ {
		w.record(true, time.Millisecond)
	}
	if got := w.successRateScore(); got != 0.5 {
		t.Errorf("expected neutral 0.5 before %d samples, got %v", minSamplesForSuccessRate, got)
	}

	w.record(true, time.Millisecond)
	if got := w.successRateScore(); got != 1.0 {
		t.Errorf("expected 1.0 with an all-success window at the sample threshold, got %v", got)
	}
}

func TestWindow_ReliabilityScore_PenalizesConsecutiveFailures(t *testing.T) {
	w := newWindow()
	w.healthStatus = "healthy"
	base := w.reliabilityScore()

	for i := 0; i < 3; i++ {
		w.record(false, time.Second)
	}
	after := w.reliabilityScore()

	if after >= base {
		t.Errorf("expected reliability score to drop after consecutive failures: base=%v after=%v", base, after)
	}
}

func TestWindow_ReliabilityScore_BoundedToUnitRange(t *testing.T) {
	w := newWindow()
	w.healthStatus = "unhealthy"
	for i := 0; i < 50; i++ {
		w.record(false, time.Second)
	}
	score := w.reliabilityScore()
	if score < 0 || score > 1 {
		t.Errorf("expected reliability score clamped to [0,1], got %v", score)
	}
}

func TestWindow_Snapshot_OverallScoreWeighting(t *testing.T) {
	w := newWindow()
	w.healthStatus = "healthy"
	for i := 0; i < 10; i++ {
		w.record(true, 10*time.Millisecond)
	}

	snap := w.snapshot(strategyWeights[SpeedFirst])
	if snap.OverallScore <= 0 {
		t.Errorf("expected a positive overall score, got %v", snap.OverallScore)
	}
	if snap.HealthScore != snap.OverallScore {
		t.Errorf("expected HealthScore to mirror OverallScore, got %v vs %v", snap.HealthScore, snap.OverallScore)
	}
}
