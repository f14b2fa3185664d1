// Package prioritizer implements the Dynamic Platform Prioritizer (spec.md
// §4.H): a rolling per-platform metrics window, three weighted sub-scores,
// five selectable strategies, and a cached ordering. Grounded on
// internal/routing/router.go's routeByPerformance/estimateLatency/
// getHealthyProviders shape for the "observe, score, order, cache"
// pipeline; the exact scoring formulas come from spec.md §4.H, not the
// teacher's hardcoded latency table.
package prioritizer

import (
	"math"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

const (
	responseTimeThreshold   = 5 * time.Second
	minSamplesForSuccessRate = 5
	maxRollingWindow        = 100
	failurePenaltyDuration  = 300 * time.Second
)

// window is the mutable rolling-metrics state for one platform. It is the
// in-package working copy of videotypes.PlatformMetrics; the package
// exposes read-only snapshots via Snapshot.
type window struct {
	responseTimes       []time.Duration // ring, capped at maxRollingWindow
	successfulRequests  int64
	failedRequests      int64
	consecutiveFailures int
	lastFailureAt       *time.Time
	healthStatus        string // healthy, degraded, unhealthy, unknown
}

func newWindow() *window {
	return &window{healthStatus: "unknown"}
}

func (w *window) record(success bool, responseTime time.Duration) {
	w.responseTimes = append(w.responseTimes, responseTime)
	if len(w.responseTimes) > maxRollingWindow {
		w.responseTimes = w.responseTimes[len(w.responseTimes)-maxRollingWindow:]
	}
	if success {
		w.successfulRequests++
		w.consecutiveFailures = 0
	} else {
		w.failedRequests++
		w.consecutiveFailures++
		now := time.Now()
		w.lastFailureAt = &now
	}
}

func (w *window) total() int64 { return w.successfulRequests + w.failedRequests }

func (w *window) avgResponseTime() time.Duration {
	if len(w.responseTimes) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range w.responseTimes {
		sum += d
	}
	return sum / time.Duration(len(w.responseTimes))
}

// responseTimeScore = 1 / (1 + avg/threshold), in (0,1].
func (w *window) responseTimeScore() float64 {
	avg := w.avgResponseTime()
	if avg <= 0 {
		return 1.0
	}
	return 1.0 / (1.0 + float64(avg)/float64(responseTimeThreshold))
}

// successRateScore = (successful/total)^0.5 once at least 5 samples are
// observed; neutral 0.5 before that.
func (w *window) successRateScore() float64 {
	total := w.total()
	if total < minSamplesForSuccessRate {
		return 0.5
	}
	rate := float64(w.successfulRequests) / float64(total)
	return math.Sqrt(rate)
}

var healthMultiplier = map[string]float64{
	"healthy":   1.0,
	"degraded":  0.7,
	"unhealthy": 0.3,
	"unknown":   0.9,
}

// reliabilityScore starts at 1.0, is reduced by consecutive failures
// (capped at -0.8), amplified by the health-status multiplier, then further
// reduced by a time-decayed penalty (up to -0.3) for a recent failure.
func (w *window) reliabilityScore() float64 {
	score := 1.0 - math.Min(0.8, 0.2*float64(w.consecutiveFailures))

	mult, ok := healthMultiplier[w.healthStatus]
	if !ok {
		mult = healthMultiplier["unknown"]
	}
	score *= mult

	if w.lastFailureAt != nil {
		elapsed := time.Since(*w.lastFailureAt)
		if elapsed < failurePenaltyDuration {
			fraction := 1.0 - float64(elapsed)/float64(failurePenaltyDuration)
			score -= 0.3 * fraction
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// snapshot converts the internal window into the exported, JSON-tagged
// PlatformMetrics shape, computing OverallScore with the given weights.
func (w *window) snapshot(weights scoreWeights) videotypes.PlatformMetrics {
	rt := w.responseTimeScore()
	rel := w.reliabilityScore()
	sr := w.successRateScore()

	m := videotypes.PlatformMetrics{
		SuccessfulRequests:  w.successfulRequests,
		FailedRequests:      w.failedRequests,
		ConsecutiveFailures: w.consecutiveFailures,
		LastFailureAt:       w.lastFailureAt,
		ResponseTimeScore:   rt,
		ReliabilityScore:    rel,
		SuccessRateScore:    sr,
	}
	m.OverallScore = weights.rt*rt + weights.rel*rel + weights.sr*sr
	m.HealthScore = m.OverallScore
	return m
}
