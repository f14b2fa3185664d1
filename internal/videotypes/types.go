// Package videotypes holds the data model shared across the federation
// core: search hits, detail records, stream handles, and the per-platform
// runtime state the resilience, prioritization, and fallback layers
// maintain.
package videotypes

import "time"

// VideoSummary is a single search hit. It is immutable after construction;
// (PlatformTag, ID) is globally unique, though ID itself is only opaque
// within a platform.
type VideoSummary struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	CanonicalURL    string  `json:"canonical_url"`
	PlatformTag     string  `json:"platform_tag"`
	Description     string  `json:"description,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Views           *int64  `json:"views,omitempty"`
	Instance        string  `json:"instance,omitempty"`
}

// VideoDetails extends VideoSummary with fields only available once a
// video's page has been fetched directly.
type VideoDetails struct {
	VideoSummary
	Likes              *int64     `json:"likes,omitempty"`
	Dislikes           *int64     `json:"dislikes,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	AvailableQualities []string   `json:"available_qualities,omitempty"`
}

// StreamHandle carries a direct, usually short-lived, media URL.
// Implementations MAY refuse to cache a StreamHandle beyond 30 minutes.
type StreamHandle struct {
	DirectURL  string     `json:"direct_url"`
	QualityTag string     `json:"quality_tag"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// PlatformConfig describes one configured source. It is owned by the
// Registry and read-only once the process has started.
type PlatformConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Credentials map[string]string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Endpoints   []string          `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	Options     map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// InstanceStatus is the health label for one federated endpoint.
type InstanceStatus string

const (
	InstanceHealthy   InstanceStatus = "healthy"
	InstanceDegraded  InstanceStatus = "degraded"
	InstanceUnhealthy InstanceStatus = "unhealthy"
)

// InstanceHealth tracks one endpoint of the federated source.
//
// Invariant: Status == InstanceUnhealthy iff ConsecutiveFailures >= 3. An
// unhealthy endpoint is excluded from fan-out until either 5 minutes have
// elapsed since LastFailureAt or a manual probe succeeds.
type InstanceHealth struct {
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastSuccessAt       *time.Time     `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time     `json:"last_failure_at,omitempty"`
	LastErrorCategory   string         `json:"last_error_category,omitempty"`
	Status              InstanceStatus `json:"status"`
}

// BreakerState is the circuit breaker's state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreakerState is a snapshot of one logical service's breaker.
type CircuitBreakerState struct {
	State                  BreakerState `json:"state"`
	FailureCount            int          `json:"failure_count"`
	SuccessCountInHalfOpen  int          `json:"success_count_in_half_open"`
	OpenedAt                *time.Time   `json:"opened_at,omitempty"`
}

// PlatformMetrics is the Prioritizer's rolling observation window for one
// platform.
type PlatformMetrics struct {
	ResponseTimes       []time.Duration `json:"-"` // rolling window, last 100
	SuccessfulRequests  int64           `json:"successful_requests"`
	FailedRequests      int64           `json:"failed_requests"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastFailureAt       *time.Time      `json:"last_failure_at,omitempty"`
	HealthScore         float64         `json:"health_score"`

	ResponseTimeScore float64 `json:"response_time_score"`
	ReliabilityScore  float64 `json:"reliability_score"`
	SuccessRateScore  float64 `json:"success_rate_score"`
	OverallScore      float64 `json:"overall_score"`
}

// Total returns successful+failed, the quantity invariant 1 constrains.
func (m *PlatformMetrics) Total() int64 {
	return m.SuccessfulRequests + m.FailedRequests
}

// FallbackStrategy is a static, per-platform degraded-mode description.
// Strategies are sorted ascending by Priority; activation picks the
// smallest-priority enabled strategy.
type FallbackStrategy struct {
	Mode         string   `json:"mode"`
	Description  string   `json:"description"`
	Limitations  []string `json:"limitations"`
	Priority     int      `json:"priority"`
	Enabled      bool     `json:"enabled"`
}

// FallbackAction is one entry in a platform's fallback history.
type FallbackAction string

const (
	FallbackActivated   FallbackAction = "activated"
	FallbackDeactivated FallbackAction = "deactivated"
)

// FallbackHistoryEntry records one transition.
type FallbackHistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    FallbackAction `json:"action"`
	Reason    string         `json:"reason"`
	Strategy  string         `json:"strategy,omitempty"`
}

// PlatformFallbackState is the runtime fallback pointer plus history for
// one platform.
type PlatformFallbackState struct {
	ActiveStrategy *FallbackStrategy      `json:"active_strategy,omitempty"`
	History        []FallbackHistoryEntry `json:"history"`
}
