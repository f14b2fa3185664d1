package prioritizer

import (
	"sort"
	"sync"
	"time"

	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Strategy selects which weight tuple scores a platform ordering.
type Strategy string

const (
	Balanced          Strategy = "balanced"
	SpeedFirst        Strategy = "speed_first"
	ReliabilityFirst  Strategy = "reliability_first"
	SuccessRateFirst  Strategy = "success_rate_first"
	Adaptive          Strategy = "adaptive"
)

// scoreWeights is (responseTime, reliability, successRate), always summing
// to 1.0, exactly spec.md §4.H's weight table.
type scoreWeights struct{ rt, rel, sr float64 }

var strategyWeights = map[Strategy]scoreWeights{
	Balanced:         {0.30, 0.40, 0.30},
	SpeedFirst:       {0.70, 0.15, 0.15},
	ReliabilityFirst: {0.15, 0.70, 0.15},
	SuccessRateFirst: {0.15, 0.15, 0.70},
}

const updateInterval = 60 * time.Second

// Prioritizer maintains a rolling metrics window per platform and produces
// a cached, strategy-weighted ordering.
type Prioritizer struct {
	mu       sync.Mutex
	windows  map[string]*window
	strategy Strategy
	logger   *obs.Logger

	cachedOrder   []string
	cachedAt      time.Time
}

func New(logger *obs.Logger) *Prioritizer {
	return &Prioritizer{
		windows:  make(map[string]*window),
		strategy: Balanced,
		logger:   logger,
	}
}

func (p *Prioritizer) entry(platform string) *window {
	w, ok := p.windows[platform]
	if !ok {
		w = newWindow()
		p.windows[platform] = w
	}
	return w
}

// Record appends one observation to platform's rolling window and
// invalidates the ordering cache.
func (p *Prioritizer) Record(platform string, success bool, responseTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(platform).record(success, responseTime)
	p.cachedOrder = nil
}

// UpdateHealth is called by the Health Monitor (§4.I) to set a platform's
// health-status multiplier input.
func (p *Prioritizer) UpdateHealth(platform string, status videotypes.InstanceStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(platform).healthStatus = string(status)
	p.cachedOrder = nil
}

// SetStrategy changes the active scoring strategy and invalidates the cache.
func (p *Prioritizer) SetStrategy(s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = s
	p.cachedOrder = nil
}

// resolveStrategy picks a concrete weight tuple. Adaptive inspects the
// fraction of unhealthy platforms: >50% unhealthy -> reliability_first,
// >80% healthy -> speed_first, else balanced.
func (p *Prioritizer) resolveStrategy() Strategy {
	if p.strategy != Adaptive {
		return p.strategy
	}
	if len(p.windows) == 0 {
		return Balanced
	}
	var unhealthy, healthy int
	for _, w := range p.windows {
		switch w.healthStatus {
		case "unhealthy":
			unhealthy++
		case "healthy":
			healthy++
		}
	}
	total := float64(len(p.windows))
	if float64(unhealthy)/total > 0.5 {
		return ReliabilityFirst
	}
	if float64(healthy)/total > 0.8 {
		return SpeedFirst
	}
	return Balanced
}

// Order ranks available platforms best-first by overall score, caching the
// result for updateInterval (default 60s) to avoid recomputing on every
// request.
func (p *Prioritizer) Order(available []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedOrder != nil && time.Since(p.cachedAt) < updateInterval {
		return filterAvailable(p.cachedOrder, available)
	}

	strategy := p.resolveStrategy()
	weights, ok := strategyWeights[strategy]
	if !ok {
		weights = strategyWeights[Balanced]
	}

	type scored struct {
		name  string
		score float64
	}
	all := make([]scored, 0, len(p.windows))
	for name, w := range p.windows {
		all = append(all, scored{name: name, score: w.snapshot(weights).OverallScore})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	order := make([]string, len(all))
	for i, s := range all {
		order[i] = s.name
	}
	p.cachedOrder = order
	p.cachedAt = time.Now()

	return filterAvailable(order, available)
}

func filterAvailable(order, available []string) []string {
	avail := make(map[string]bool, len(available))
	for _, a := range available {
		avail[a] = true
	}
	out := make([]string, 0, len(order))
	for _, name := range order {
		if avail[name] {
			out = append(out, name)
		}
	}
	for _, a := range available {
		if !contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Snapshot returns platform's current metrics using the active strategy's
// weights, for method-call reporting.
func (p *Prioritizer) Snapshot(platform string) (videotypes.PlatformMetrics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[platform]
	if !ok {
		return videotypes.PlatformMetrics{}, false
	}
	weights, ok := strategyWeights[p.resolveStrategy()]
	if !ok {
		weights = strategyWeights[Balanced]
	}
	return w.snapshot(weights), true
}

// Summary returns every tracked platform's current metrics snapshot, for
// spec.md §6's prioritizer_summary() reporting call.
func (p *Prioritizer) Summary() map[string]videotypes.PlatformMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	weights, ok := strategyWeights[p.resolveStrategy()]
	if !ok {
		weights = strategyWeights[Balanced]
	}
	out := make(map[string]videotypes.PlatformMetrics, len(p.windows))
	for name, w := range p.windows {
		out[name] = w.snapshot(weights)
	}
	return out
}
