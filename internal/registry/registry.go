// Package registry implements the Registry (spec.md §4.J): loads enabled
// adapters from config, retains them keyed by name, and routes by URL
// ownership or by the Prioritizer's ordering. Grounded on
// internal/routing/router.go's provider-registration and
// health-aware-filtering shape, generalized from named LLM providers to
// named video platforms.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/platform"
	"github.com/tributary-ai/videofed/internal/prioritizer"
)

// Registry owns the set of configured platform adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]platform.Adapter
	order    []string // registration order, used when the prioritizer has no data yet
	prio     *prioritizer.Prioritizer
	logger   *obs.Logger
}

func New(prio *prioritizer.Prioritizer, logger *obs.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]platform.Adapter),
		prio:     prio,
		logger:   logger,
	}
}

// Register adds an adapter under its own Name(). Registration order is the
// dependency order StartAll/StopAll uses.
func (r *Registry) Register(a platform.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
	r.order = append(r.order, a.Name())
}

// Get returns the named adapter, if registered.
func (r *Registry) Get(name string) (platform.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// AdapterForURL returns the first registered adapter that claims rawURL,
// per spec.md §4.J.
func (r *Registry) AdapterForURL(rawURL string) (platform.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if a := r.adapters[name]; a.OwnsURL(rawURL) {
			return a, true
		}
	}
	return nil, false
}

// PlatformsByPriority defers to the Prioritizer's Order over every
// currently-registered platform name.
func (r *Registry) PlatformsByPriority() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()

	if r.prio == nil {
		return names
	}
	return r.prio.Order(names)
}

// Decide builds a RoutingDecision snapshot for the given query's selected
// platform, for spec.md §6's routing_info() reporting call.
func (r *Registry) Decide(selected string, strategy string, reasoning []string) RoutingDecision {
	order := r.PlatformsByPriority()
	fallback := make([]string, 0, len(order))
	for _, p := range order {
		if p != selected {
			fallback = append(fallback, p)
		}
	}
	return RoutingDecision{
		SelectedPlatform: selected,
		Reasoning:        reasoning,
		FallbackChain:    fallback,
		RoutingContext: RoutingContext{
			Strategy:            strategy,
			ConsideredPlatforms: order,
			Timestamp:           time.Now(),
		},
	}
}

// StartAll initializes every registered adapter in registration order,
// stopping at the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	order := append([]string{}, r.order...)
	r.mu.RUnlock()

	for _, name := range order {
		a, _ := r.Get(name)
		if err := a.Initialize(ctx); err != nil {
			return fmt.Errorf("registry: initializing %s: %w", name, err)
		}
		if r.logger != nil {
			r.logger.With("platform", name).Info("registry: platform initialized")
		}
	}
	return nil
}

// StopAll shuts down every registered adapter in reverse registration
// order, continuing past individual failures so one stuck adapter doesn't
// block the others from releasing resources.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	order := append([]string{}, r.order...)
	r.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		a, _ := r.Get(order[i])
		if err := a.Shutdown(ctx); err != nil && r.logger != nil {
			r.logger.With("platform", order[i]).Warn("registry: shutdown error")
		}
	}
}
