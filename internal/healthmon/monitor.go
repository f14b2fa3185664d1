// Package healthmon implements the Connection Health Monitor (spec.md
// §4.I): a periodic probe loop over every registered service, classifying
// outcomes into {healthy, degraded, unhealthy}, feeding the Prioritizer,
// and scheduling recovery on repeated failure. Grounded on
// maciekish-split-vpn-webui's environment-detection idiom for the
// constrained-deployment adaptation, and
// jmylchreest-tvarr/pkg/httpclient's health-check loop shape.
package healthmon

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/platformerr"
	"github.com/tributary-ai/videofed/internal/prioritizer"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Probe is a lightweight liveness check for one service, e.g. a platform's
// search("test", 1) call.
type Probe func(ctx context.Context) error

type registration struct {
	name  string
	probe Probe
}

// EnvAdapter detects whether the process runs on a resource-constrained
// deployment (container, VPS) and scales thresholds/timeouts accordingly,
// per spec.md §4.I's Environment adaptation paragraph.
type EnvAdapter struct {
	Constrained bool
}

// DetectEnv inspects IS_VPS/DEPLOYMENT_TYPE env vars and common
// container-marker files, mirroring split-vpn-webui's deployment detection.
func DetectEnv() EnvAdapter {
	if v := os.Getenv("IS_VPS"); v == "true" || v == "1" {
		return EnvAdapter{Constrained: true}
	}
	if v := os.Getenv("DEPLOYMENT_TYPE"); v == "vps" || v == "container" {
		return EnvAdapter{Constrained: true}
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return EnvAdapter{Constrained: true}
	}
	return EnvAdapter{Constrained: false}
}

func (e EnvAdapter) probeInterval() time.Duration {
	if e.Constrained {
		return 60 * time.Second
	}
	return 30 * time.Second
}

func (e EnvAdapter) probeTimeout() time.Duration {
	if e.Constrained {
		return 60 * time.Second
	}
	return 30 * time.Second
}

func (e EnvAdapter) maxConsecutiveFailures() int {
	if e.Constrained {
		return 5
	}
	return 3
}

// errorCategory is healthmon's own reduced taxonomy (spec.md §4.I: Network,
// Timeout, Api, Unknown), distinct from platformerr.Category per the same
// spec note that keeps the two vocabularies unmerged.
type errorCategory string

const (
	catNetwork errorCategory = "network"
	catTimeout errorCategory = "timeout"
	catAPI     errorCategory = "api"
	catUnknown errorCategory = "unknown"
)

func classify(err error) errorCategory {
	if err == nil {
		return ""
	}
	if pe, ok := platformerr.As(err); ok {
		switch pe.Category {
		case platformerr.Timeout:
			return catTimeout
		case platformerr.Network, platformerr.CircuitOpen:
			return catNetwork
		case platformerr.Server5xx, platformerr.RateLimit, platformerr.Auth, platformerr.BadRequest, platformerr.NotFound:
			return catAPI
		}
	}
	return catUnknown
}

type serviceState struct {
	consecutiveFailures int
	recentNetworkErrorAt *time.Time
	status              videotypes.InstanceStatus
}

// Monitor runs the periodic probe loop and forwards health transitions to
// the Prioritizer.
type Monitor struct {
	mu            sync.Mutex
	registrations []registration
	state         map[string]*serviceState
	env           EnvAdapter
	prio          *prioritizer.Prioritizer
	logger        *obs.Logger

	cronSched *cron.Cron
	recovery  *recoveryScheduler
}

func New(prio *prioritizer.Prioritizer, logger *obs.Logger) *Monitor {
	env := DetectEnv()
	return &Monitor{
		state:    make(map[string]*serviceState),
		env:      env,
		prio:     prio,
		logger:   logger,
		recovery: newRecoveryScheduler(logger),
	}
}

// Register adds a service's probe to the monitoring rotation.
func (m *Monitor) Register(name string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = append(m.registrations, registration{name: name, probe: probe})
	m.state[name] = &serviceState{status: videotypes.InstanceHealthy}
}

// Start launches the cron-scheduled probe loop.
func (m *Monitor) Start(ctx context.Context) error {
	interval := m.env.probeInterval()
	m.cronSched = cron.New()
	spec := "@every " + interval.String()
	if _, err := m.cronSched.AddFunc(spec, func() { m.runAll(ctx) }); err != nil {
		return err
	}
	m.cronSched.Start()
	return nil
}

func (m *Monitor) Stop() {
	if m.cronSched != nil {
		stopCtx := m.cronSched.Stop()
		<-stopCtx.Done()
	}
	m.recovery.stop()
}

func (m *Monitor) runAll(ctx context.Context) {
	m.mu.Lock()
	regs := append([]registration{}, m.registrations...)
	m.mu.Unlock()

	timeout := m.env.probeTimeout()
	for _, r := range regs {
		m.probeOne(ctx, r, timeout)
	}
}

func (m *Monitor) probeOne(ctx context.Context, r registration, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	err := r.probe(probeCtx)
	elapsed := time.Since(start)
	cancel()

	if m.prio != nil {
		m.prio.Record(r.name, err == nil, elapsed)
	}

	m.mu.Lock()
	st, ok := m.state[r.name]
	if !ok {
		st = &serviceState{status: videotypes.InstanceHealthy}
		m.state[r.name] = st
	}

	threshold := m.env.maxConsecutiveFailures()
	if cat := classify(err); cat == catNetwork {
		now := time.Now()
		st.recentNetworkErrorAt = &now
	}
	// Recent Network-category errors extend the failure threshold by 2 for
	// 5 minutes, per spec.md §4.I.
	if st.recentNetworkErrorAt != nil && time.Since(*st.recentNetworkErrorAt) < 5*time.Minute {
		threshold += 2
	}

	if err == nil {
		st.consecutiveFailures = 0
		st.status = videotypes.InstanceHealthy
	} else {
		st.consecutiveFailures++
		if st.consecutiveFailures >= threshold {
			st.status = videotypes.InstanceUnhealthy
		} else {
			st.status = videotypes.InstanceDegraded
		}
	}
	status := st.status
	failures := st.consecutiveFailures
	m.mu.Unlock()

	if m.prio != nil {
		m.prio.UpdateHealth(r.name, status)
	}

	if failures >= threshold {
		m.recovery.schedule(r.name, func(recoveryCtx context.Context) error {
			return r.probe(recoveryCtx)
		})
	}
}

// Status returns a snapshot of every monitored service's current status,
// for spec.md §6's health_report() reporting call.
func (m *Monitor) Status() map[string]videotypes.InstanceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]videotypes.InstanceStatus, len(m.state))
	for name, st := range m.state {
		out[name] = st.status
	}
	return out
}
