package resilience

import (
	"sync"

	"github.com/tributary-ai/videofed/internal/obs"
)

// Manager is the idempotent, per-service breaker registry. It is the
// direct generalization of jmylchreest-tvarr's CircuitBreakerManager:
// GetBreaker creates a breaker for a service name on first call and
// returns the same instance thereafter.
//
// Per-instance breakers for the federated source are obtained by keying on
// "peertube:<instance-url>", never the bare platform name — this is the
// concrete mechanism behind spec.md §4.B's requirement that a failing
// federated instance must not open the breaker for the whole platform.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	logger   *obs.Logger
}

func NewManager(logger *obs.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetBreaker returns the breaker for name, creating it with cfg on first
// call. Later calls ignore cfg and return the existing breaker, preserving
// its state — the same "config doesn't reset state" guarantee the teacher's
// manager gives.
func (m *Manager) GetBreaker(name string, cfg BreakerConfig) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, cfg)
	m.breakers[name] = b
	if m.logger != nil {
		m.logger.With("service", name).Debug("resilience: breaker created")
	}
	return b
}

// Names lists every breaker currently tracked, for reporting.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.breakers))
	for n := range m.breakers {
		names = append(names, n)
	}
	return names
}

// ResetAll clears every tracked breaker back to closed.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breakers {
		b.Reset()
	}
}

// Get returns an existing breaker without creating one, for reporting
// surfaces that shouldn't conjure breakers into existence just by asking.
func (m *Manager) Get(name string) (*Breaker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[name]
	return b, ok
}
