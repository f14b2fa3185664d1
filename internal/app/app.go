// Package app builds the root App value (spec.md §9): every long-lived
// component constructed once in main and passed down explicitly, never as
// a package-level global.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tributary-ai/videofed/internal/cacheport"
	"github.com/tributary-ai/videofed/internal/config"
	"github.com/tributary-ai/videofed/internal/fallback"
	"github.com/tributary-ai/videofed/internal/healthmon"
	"github.com/tributary-ai/videofed/internal/httprouter"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/platform"
	"github.com/tributary-ai/videofed/internal/platform/odysee"
	"github.com/tributary-ai/videofed/internal/platform/peertube"
	"github.com/tributary-ai/videofed/internal/platform/rumble"
	"github.com/tributary-ai/videofed/internal/platform/youtube"
	"github.com/tributary-ai/videofed/internal/prioritizer"
	"github.com/tributary-ai/videofed/internal/registry"
	"github.com/tributary-ai/videofed/internal/resilience"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// App is the federation core: router, resilience kernel, cache, registry,
// prioritizer, fallback engine, and health monitor, wired once.
type App struct {
	Config      *config.Config
	Logger      *obs.Logger
	Metrics     *obs.Metrics
	Router      *httprouter.Router
	Breakers    *resilience.Manager
	Cache       cacheport.Port
	Registry    *registry.Registry
	Prioritizer *prioritizer.Prioritizer
	Fallback    *fallback.Engine
	HealthMon   *healthmon.Monitor
}

// New constructs every component and wires the enabled platform adapters
// into the Registry, but does not start any background loop — call
// Start for that.
func New(cfg *config.Config, logger *obs.Logger) (*App, error) {
	metrics := obs.NewMetrics()

	routerCfg := httprouter.Config{
		UseVPN: map[httprouter.ServiceType]bool{
			httprouter.ServiceDiscord:  cfg.Network.DiscordUseVPN,
			httprouter.ServiceYouTube:  cfg.Network.YouTubeUseVPN,
			httprouter.ServiceRumble:   cfg.Network.RumbleUseVPN,
			httprouter.ServiceOdysee:   cfg.Network.OdyseeUseVPN,
			httprouter.ServicePeerTube: cfg.Network.PeerTubeUseVPN,
		},
		VPNInterface:     cfg.Network.VPNInterface,
		DefaultInterface: cfg.Network.DefaultInterface,
	}
	router := httprouter.NewRouter(routerCfg, logger)

	breakers := resilience.NewManager(logger)
	var cache cacheport.Port = cacheport.NewMemoryPort()

	prio := prioritizer.New(logger)
	reg := registry.New(prio, logger)

	fb := fallback.NewEngine(cfg.ToFallbackConfig(), logger)

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Router:      router,
		Breakers:    breakers,
		Cache:       cache,
		Registry:    reg,
		Prioritizer: prio,
		Fallback:    fb,
		HealthMon:   healthmon.New(prio, logger),
	}

	if err := a.registerAdapters(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) registerAdapters() error {
	for _, name := range a.Config.EnabledPlatforms() {
		pc, _ := a.Config.PlatformConfig(name)
		adapter, err := a.buildAdapter(name, pc)
		if err != nil {
			return fmt.Errorf("app: building %s adapter: %w", name, err)
		}
		if adapter == nil {
			continue
		}
		a.Registry.Register(adapter)
		a.HealthMon.Register(name, healthProbe(adapter))
	}
	return nil
}

func healthProbe(a platform.Adapter) healthmon.Probe {
	return func(ctx context.Context) error {
		_, err := a.Search(ctx, "healthcheck", 1)
		return err
	}
}

func (a *App) buildAdapter(name string, pc videotypes.PlatformConfig) (platform.Adapter, error) {
	switch name {
	case "youtube":
		breaker := a.Breakers.GetBreaker("youtube", resilience.BreakerConfig{})
		cfg := youtube.Config{
			APIKey:          pc.Credentials["api_key"],
			CookieJSONPath:  pc.Options["cookie_json_path"],
			MediaInfoBinary: orDefault(pc.Options["media_info_binary"], "yt-dlp"),
		}
		return youtube.New(cfg, a.Router, breaker, a.Cache, a.Fallback, a.Logger), nil

	case "rumble":
		breaker := a.Breakers.GetBreaker("rumble", resilience.BreakerConfig{})
		cfg := rumble.Config{APIToken: pc.Credentials["api_token"]}
		return rumble.New(cfg, a.Router, breaker, a.Cache, a.Logger), nil

	case "odysee":
		breaker := a.Breakers.GetBreaker("odysee", resilience.BreakerConfig{})
		cfg := odysee.Config{APIToken: pc.Credentials["api_token"]}
		return odysee.New(cfg, a.Router, breaker, a.Cache, a.Logger), nil

	case "peertube":
		cfg := peertube.Config{Instances: pc.Endpoints}
		return peertube.New(cfg, a.Router, a.Breakers, a.Cache, a.Logger), nil

	default:
		a.Logger.With("platform", name).Warn("app: unknown platform in config, skipping")
		return nil, nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Start initializes every adapter and launches the background loops
// (Fallback Engine recovery monitor, Health Monitor probe loop), in the
// dependency order spec.md §2 fixes: Router/Resilience/Cache are already
// live by construction; adapters next; Prioritizer/Fallback/HealthMonitor
// last.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.StartAll(ctx); err != nil {
		return err
	}
	if err := a.Fallback.Start(ctx); err != nil {
		return fmt.Errorf("app: starting fallback engine: %w", err)
	}
	if err := a.HealthMon.Start(ctx); err != nil {
		return fmt.Errorf("app: starting health monitor: %w", err)
	}
	return nil
}

// Stop tears every component down in reverse dependency order.
func (a *App) Stop(ctx context.Context) {
	a.HealthMon.Stop()
	a.Fallback.Stop()
	a.Registry.StopAll(ctx)
	a.Router.Shutdown()
}

// HealthReport is spec.md §6's health_report() reporting call.
func (a *App) HealthReport() map[string]videotypes.InstanceStatus {
	return a.HealthMon.Status()
}

// FallbackReport is spec.md §6's fallback_report() reporting call.
func (a *App) FallbackReport() map[string]videotypes.PlatformFallbackState {
	out := make(map[string]videotypes.PlatformFallbackState)
	for _, name := range a.Config.EnabledPlatforms() {
		out[name] = a.Fallback.Report(name)
	}
	return out
}

// PrioritizerSummary is spec.md §6's prioritizer_summary() reporting call.
func (a *App) PrioritizerSummary() map[string]videotypes.PlatformMetrics {
	return a.Prioritizer.Summary()
}

// RoutingInfo is spec.md §6's routing_info() reporting call: the decision
// that would be made for a query right now, without executing it.
func (a *App) RoutingInfo(selected string, reasoning []string) registry.RoutingDecision {
	strategy := a.Config.Router.DefaultStrategy
	return a.Registry.Decide(selected, strategy, reasoning)
}

// SelectPlatform resolves the query's owning platform by URL if it looks
// like one, otherwise falls back to the Prioritizer's best-ranked platform.
func (a *App) SelectPlatform(rawURL string) (platform.Adapter, registry.RoutingDecision) {
	reasoning := []string{}
	if rawURL != "" {
		if a2, ok := a.Registry.AdapterForURL(rawURL); ok {
			reasoning = append(reasoning, "matched by URL ownership")
			return a2, a.RoutingInfo(a2.Name(), reasoning)
		}
	}

	order := a.Registry.PlatformsByPriority()
	if len(order) == 0 {
		return nil, a.RoutingInfo("", []string{"no platforms registered"})
	}
	reasoning = append(reasoning, "selected by prioritizer ordering")
	best := order[0]
	a2, _ := a.Registry.Get(best)
	return a2, a.RoutingInfo(best, reasoning)
}

// metricsTick periodically mirrors Prioritizer/Fallback/HealthMonitor state
// into the Prometheus gauges. Call from a cron/ticker in main; its only
// effect is setting gauges, so it's safe to call on any cadence.
func (a *App) metricsTick() {
	for name, snapshot := range a.Prioritizer.Summary() {
		a.Metrics.PlatformScore.WithLabelValues(name).Set(snapshot.OverallScore)
	}
	for name, state := range a.FallbackReport() {
		if state.ActiveStrategy != nil {
			a.Metrics.FallbackActive.WithLabelValues(name, state.ActiveStrategy.Mode).Set(1)
		}
	}
	for name, status := range a.HealthReport() {
		healthy := 0.0
		if status == videotypes.InstanceHealthy {
			healthy = 1
		}
		a.Metrics.InstanceHealthy.WithLabelValues(name).Set(healthy)
	}
}

// MetricsTick exposes metricsTick for main's periodic scheduler.
func (a *App) MetricsTick(_ context.Context) { a.metricsTick() }

// Now exists purely so callers outside this package never need time.Now
// directly when stamping ad hoc RoutingContext values.
func Now() time.Time { return time.Now() }
