package fallback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Config mirrors platform_fallback_manager.py's constructor config dict.
type Config struct {
	Enabled                    bool
	RetryIntervalMinutes       int     // default 30
	MaxFallbackDurationHours   int     // default 24
	QuotaLimit                 int     // YouTube-specific, default 10000
	StrategyEffectivenessThreshold float64 // default 0.7
	QuotaConservationThreshold float64 // default 0.8
}

func (c Config) withDefaults() Config {
	if c.RetryIntervalMinutes <= 0 {
		c.RetryIntervalMinutes = 30
	}
	if c.MaxFallbackDurationHours <= 0 {
		c.MaxFallbackDurationHours = 24
	}
	if c.QuotaLimit <= 0 {
		c.QuotaLimit = 10000
	}
	if c.StrategyEffectivenessThreshold <= 0 {
		c.StrategyEffectivenessThreshold = 0.7
	}
	if c.QuotaConservationThreshold <= 0 {
		c.QuotaConservationThreshold = 0.8
	}
	return c
}

// Engine manages degraded-mode fallback strategies per platform, mirroring
// PlatformFallbackManager: a fixed priority-ordered strategy table per
// platform, an active-fallback map, a history log, and a recovery loop.
type Engine struct {
	mu                sync.Mutex
	cfg               Config
	strategies        map[string][]videotypes.FallbackStrategy
	active            map[string]*videotypes.FallbackStrategy
	history           map[string][]videotypes.FallbackHistoryEntry
	cookieHealthy     map[string]bool
	logger            *obs.Logger

	cronSched *cron.Cron
	entryID   cron.EntryID
}

func NewEngine(cfg Config, logger *obs.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:           cfg,
		strategies:    defaultStrategies(),
		active:        make(map[string]*videotypes.FallbackStrategy),
		history:       make(map[string][]videotypes.FallbackHistoryEntry),
		cookieHealthy: make(map[string]bool),
		logger:        logger,
	}
	return e
}

// defaultStrategies mirrors _setup_default_strategies: one priority-ordered
// strategy list per known platform.
func defaultStrategies() map[string][]videotypes.FallbackStrategy {
	return map[string][]videotypes.FallbackStrategy{
		"youtube": {
			{Mode: string(APIGatedPrimary), Description: "Normal API usage with quota management", Limitations: []string{"Subject to daily quota limits", "No access to private/age-restricted content"}, Priority: 1, Enabled: true},
			{Mode: string(APIGatedExtractAuthenticated), Description: "Local extraction with browser cookies for full access", Limitations: []string{"Depends on cookie health", "Slower than API for searches"}, Priority: 2, Enabled: true},
			{Mode: string(APIGatedExtractPublic), Description: "Local extraction without authentication", Limitations: []string{"No access to private/age-restricted content", "Higher chance of extraction failures"}, Priority: 3, Enabled: true},
			{Mode: string(APIGatedCacheOnly), Description: "Return only cached results", Limitations: []string{"No new searches possible", "Results may be outdated"}, Priority: 4, Enabled: true},
			{Mode: string(APIGatedCrossPlatform), Description: "Search other platforms for similar content", Limitations: []string{"Different content catalog", "May not find exact matches"}, Priority: 5, Enabled: true},
			{Mode: string(GenericDisabled), Description: "Disable YouTube platform entirely", Limitations: []string{"No YouTube functionality available"}, Priority: 6, Enabled: true},
		},
		"rumble": {
			{Mode: string(GenericPublicOnly), Description: "Access only public content without authentication", Limitations: []string{"No access to private channels", "Limited search capabilities"}, Priority: 1, Enabled: true},
			{Mode: string(GenericLimitedSearch), Description: "Basic public search functionality", Limitations: []string{"Reduced search accuracy"}, Priority: 2, Enabled: true},
			{Mode: string(GenericDisabled), Description: "Disable Rumble platform", Limitations: []string{"No Rumble functionality available"}, Priority: 3, Enabled: true},
		},
		"odysee": {
			{Mode: string(GenericPublicOnly), Description: "Access public content without authentication", Limitations: []string{"No access to private content", "Basic search only"}, Priority: 1, Enabled: true},
			{Mode: string(GenericDisabled), Description: "Disable Odysee platform", Limitations: []string{"No Odysee functionality available"}, Priority: 2, Enabled: true},
		},
		"peertube": {
			{Mode: string(GenericPublicOnly), Description: "Access public instances without authentication", Limitations: []string{"Limited to federated content"}, Priority: 1, Enabled: true},
			{Mode: string(GenericDisabled), Description: "Disable PeerTube platform", Limitations: []string{"No PeerTube functionality available"}, Priority: 2, Enabled: true},
		},
	}
}

// Activate selects the enabled strategy with the smallest Priority value,
// replacing any currently active one, and records it, mirroring
// activate_fallback.
func (e *Engine) Activate(ctx context.Context, platform, reason string) (*videotypes.FallbackStrategy, error) {
	if !e.cfg.Enabled {
		return nil, fmt.Errorf("fallback: fallbacks disabled, cannot activate for %s", platform)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates := append([]videotypes.FallbackStrategy{}, e.strategies[platform]...)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("fallback: no strategies defined for platform %s", platform)
	}

	enabled := candidates[:0]
	for _, s := range candidates {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("fallback: no enabled strategies for platform %s", platform)
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Priority < enabled[j].Priority })

	selected := enabled[0]
	e.active[platform] = &selected
	e.history[platform] = append(e.history[platform], videotypes.FallbackHistoryEntry{
		Timestamp: time.Now(),
		Action:    videotypes.FallbackActivated,
		Reason:    reason,
		Strategy:  selected.Mode,
	})

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{"platform": platform, "mode": selected.Mode, "reason": reason}).
			Warn("fallback: activated")
	}
	return &selected, nil
}

// Deactivate clears the active fallback for platform, mirroring
// deactivate_fallback. Returns false if none was active.
func (e *Engine) Deactivate(platform, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, ok := e.active[platform]
	if !ok {
		return false
	}
	delete(e.active, platform)
	e.history[platform] = append(e.history[platform], videotypes.FallbackHistoryEntry{
		Timestamp: time.Now(),
		Action:    videotypes.FallbackDeactivated,
		Reason:    reason,
		Strategy:  strategy.Mode,
	})
	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{"platform": platform, "mode": strategy.Mode}).
			Info("fallback: deactivated")
	}
	return true
}

// ActiveMode reports the current fallback mode for platform, if any.
func (e *Engine) ActiveMode(platform string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.active[platform]
	if !ok {
		return "", false
	}
	return s.Mode, true
}

// Restricted reports whether operation should be blocked under the
// platform's current fallback mode, mirroring
// should_use_fallback_for_operation's restriction table.
func (e *Engine) Restricted(platform, operation string) (bool, string) {
	e.mu.Lock()
	s, ok := e.active[platform]
	e.mu.Unlock()
	if !ok {
		return false, ""
	}

	switch s.Mode {
	case string(GenericDisabled):
		return true, "platform is disabled"
	case string(GenericReadOnly):
		if isWriteOp(operation) {
			return true, "write operations disabled in read-only mode"
		}
	case string(GenericLimitedSearch):
		if operation == "advanced_search" || operation == "personalized_search" || operation == "trending" {
			return true, "advanced search features disabled"
		}
	case string(GenericPublicOnly):
		if operation == "private_content" || operation == "authenticated_content" || operation == "user_playlists" {
			return true, "private content not available in public-only mode"
		}
	case string(GenericAPIOnly):
		if operation == "stream_extraction" || operation == "download" {
			return true, "stream extraction may be limited in API-only mode"
		}
	case string(APIGatedPrimary):
		if operation == "private_content" || operation == "age_restricted_content" {
			return true, "content requires authentication"
		}
	case string(APIGatedExtractAuthenticated):
		return false, ""
	case string(APIGatedExtractPublic):
		if operation == "private_content" || operation == "age_restricted_content" || operation == "user_playlists" {
			return true, "authentication required for this content"
		}
	case string(APIGatedCacheOnly):
		if operation == "search" || operation == "stream_extraction" || operation == "metadata_fetch" {
			return true, "only cached content available"
		}
	case string(APIGatedCrossPlatform):
		if operation == "search" {
			return false, ""
		}
		return true, "content not available on alternative platforms"
	}
	return false, ""
}

func isWriteOp(op string) bool {
	switch op {
	case "upload", "comment", "like", "subscribe", "playlist_add":
		return true
	}
	return false
}

// Recommendations returns user-facing guidance for a platform's current
// fallback mode, mirroring get_fallback_recommendations.
func (e *Engine) Recommendations(platform string) []string {
	e.mu.Lock()
	s, ok := e.active[platform]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	switch s.Mode {
	case string(GenericDisabled):
		return []string{
			fmt.Sprintf("The %s platform is temporarily disabled", platform),
			"Try using alternative platforms for your search",
		}
	case string(GenericLimitedSearch):
		return []string{fmt.Sprintf("%s is running with limited search capabilities", platform)}
	case string(GenericPublicOnly):
		return []string{fmt.Sprintf("%s can only access public content currently", platform)}
	case string(APIGatedCacheOnly):
		return []string{fmt.Sprintf("%s is returning cached results only", platform)}
	case string(APIGatedCrossPlatform):
		return []string{fmt.Sprintf("%s quota exhausted, try searching other platforms", platform)}
	}
	return nil
}

// SetCookieHealth records whether platform's stored cookies are currently
// usable; on each tick the monitoring loop deactivates the active fallback
// of every platform last reported healthy here, whatever its mode.
func (e *Engine) SetCookieHealth(platform string, healthy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cookieHealthy[platform] = healthy
}

// Report returns platform's fallback snapshot for method-call reporting
// (spec.md §6's FallbackReport), not an HTTP response.
func (e *Engine) Report(platform string) videotypes.PlatformFallbackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := videotypes.PlatformFallbackState{
		ActiveStrategy: e.active[platform],
		History:        append([]videotypes.FallbackHistoryEntry{}, e.history[platform]...),
	}
	return state
}

// AllActive returns the set of platforms currently in a fallback mode.
func (e *Engine) AllActive() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.active))
	for platform, s := range e.active {
		out[platform] = s.Mode
	}
	return out
}

// ClearHistory discards recorded activations/deactivations for platform.
func (e *Engine) ClearHistory(platform string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.history, platform)
}

// Start launches the recovery monitoring loop via robfig/cron, checking
// every RetryIntervalMinutes whether an active fallback's platform has
// healthy cookies (see SetCookieHealth) and deactivating it if so. Quota is
// not consulted.
func (e *Engine) Start(ctx context.Context) error {
	if !e.cfg.Enabled {
		if e.logger != nil {
			e.logger.Info("fallback: fallbacks disabled, monitor not started")
		}
		return nil
	}
	e.cronSched = cron.New()
	spec := fmt.Sprintf("@every %dm", e.cfg.RetryIntervalMinutes)
	id, err := e.cronSched.AddFunc(spec, func() { e.monitorTick() })
	if err != nil {
		return err
	}
	e.entryID = id
	e.cronSched.Start()
	return nil
}

func (e *Engine) Stop() {
	if e.cronSched != nil {
		stopCtx := e.cronSched.Stop()
		<-stopCtx.Done()
	}
}

func (e *Engine) monitorTick() {
	e.mu.Lock()
	platforms := make([]string, 0, len(e.active))
	for p := range e.active {
		platforms = append(platforms, p)
	}
	e.mu.Unlock()

	for _, platform := range platforms {
		if healthy, ok := e.cookieHealthy[platform]; ok && healthy {
			e.Deactivate(platform, "cookies restored")
		}
	}
}
