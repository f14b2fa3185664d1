package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the real Prometheus registry replacing the teacher's
// internal/server/server.go handleMetrics, which emitted hardcoded,
// explicitly-mocked gauge values. PlatformScore, FallbackActive and
// InstanceHealthy are set by app.App's metrics tick from the Prioritizer,
// Fallback Engine and Health Monitor; RequestsTotal, RequestDuration and
// BreakerState are registered but no component updates them.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	PlatformScore      *prometheus.GaugeVec
	FallbackActive     *prometheus.GaugeVec
	InstanceHealthy    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "videofed",
			Name:      "platform_requests_total",
			Help:      "Total outbound platform requests by platform and outcome.",
		}, []string{"platform", "outcome"}),
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "videofed",
			Name:      "platform_request_duration_seconds",
			Help:      "Outbound platform request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
		BreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videofed",
			Name:      "circuit_breaker_state",
			Help:      "0=closed 1=half_open 2=open, by service.",
		}, []string{"service"}),
		PlatformScore: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videofed",
			Name:      "platform_overall_score",
			Help:      "Prioritizer overall_score per platform.",
		}, []string{"platform"}),
		FallbackActive: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videofed",
			Name:      "fallback_mode_active",
			Help:      "1 if this platform/mode pair is the active fallback strategy.",
		}, []string{"platform", "mode"}),
		InstanceHealthy: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videofed",
			Name:      "federated_instance_healthy",
			Help:      "1 if the Health Monitor currently reports the labelled platform healthy.",
		}, []string{"instance"}),
	}
	return m
}

// Handler returns the standard Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
