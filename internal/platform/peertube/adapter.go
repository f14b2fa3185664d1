// Package peertube implements the self-hosted-federation platform adapter
// (spec.md §4.E.3): a query fans out, staggered, across every healthy
// configured instance, with a dedicated circuit breaker per instance so one
// bad instance never opens the breaker for the whole platform. Grounded on
// original_source/src/platforms/peertube.py.
package peertube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/tributary-ai/videofed/internal/cacheport"
	"github.com/tributary-ai/videofed/internal/httprouter"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/platform"
	"github.com/tributary-ai/videofed/internal/platformerr"
	"github.com/tributary-ai/videofed/internal/resilience"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Config configures the adapter.
type Config struct {
	Instances            []string `yaml:"instances"`
	MaxResultsPerInstance int     `yaml:"max_results_per_instance"` // default 5
}

func (c Config) withDefaults() Config {
	if c.MaxResultsPerInstance <= 0 {
		c.MaxResultsPerInstance = 5
	}
	return c
}

// instanceBreakerConfig is PEERTUBE_INSTANCE_CIRCUIT_BREAKER_CONFIG ported
// verbatim: tighter than the platform default because a single federated
// endpoint failing should recover fast without penalizing the others.
var instanceBreakerConfig = resilience.BreakerConfig{
	FailureThreshold: 3,
	RecoveryTimeout:  60 * time.Second,
	SuccessThreshold: 1,
	CallTimeout:      15 * time.Second,
}

var instanceRetryPolicy = resilience.Policy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    15 * time.Second,
	Base:        2,
}

var urlPattern = regexp.MustCompile(`https?://([^/]+)/videos/watch/([a-f0-9-]+)`)

type videoResult struct {
	summary videotypes.VideoSummary
}

// Adapter is the federated self-hosted platform (PeerTube-shape).
type Adapter struct {
	base     platform.Base
	cfg      Config
	router   *httprouter.Router
	breakers *resilience.Manager
	health   *HealthTracker
}

func New(cfg Config, router *httprouter.Router, breakers *resilience.Manager, cache cacheport.Port, logger *obs.Logger) *Adapter {
	cfg = cfg.withDefaults()
	return &Adapter{
		base: platform.Base{
			PlatformName: "peertube",
			Cache:        cache,
			Logger:       logger,
		},
		cfg:      cfg,
		router:   router,
		breakers: breakers,
		health:   NewHealthTracker(),
	}
}

func (a *Adapter) Name() string { return "peertube" }

func (a *Adapter) Initialize(ctx context.Context) error {
	if len(a.cfg.Instances) == 0 && a.base.Logger != nil {
		a.base.Logger.Warn("peertube: no instances configured")
	}
	return nil
}

// ClassifyURL extracts (instance, id) tuples but the Adapter contract only
// returns the opaque id; instance is recovered from the same regex at
// GetDetails/ExtractStreamURL time by re-matching.
func (a *Adapter) ClassifyURL(rawURL string) (string, bool) {
	m := urlPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[2], true
}

func (a *Adapter) OwnsURL(rawURL string) bool {
	return urlPattern.MatchString(rawURL)
}

func (a *Adapter) breakerFor(instance string) *resilience.Breaker {
	return a.breakers.GetBreaker("peertube:"+instance, instanceBreakerConfig)
}

// Search fans out across every currently-healthy instance, staggered by
// 50ms, bounded by min(45s, healthy_count*15s), merges and sorts by views
// descending, and truncates to max. Per spec.md §9's Open Question 1
// decision, an instance returning 403 contributes an empty result set and a
// logged warning rather than surfacing AuthRequired.
func (a *Adapter) Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	return a.base.CachedSearch(ctx, query, cacheport.DefaultMetadataTTL, func(ctx context.Context) ([]videotypes.VideoSummary, error) {
		if len(a.cfg.Instances) == 0 {
			return nil, nil
		}

		healthy := a.health.HealthyInstances(a.cfg.Instances)
		if len(healthy) == 0 {
			// All instances marked unhealthy: try a small subset anyway,
			// mirroring peertube.py's "attempt with potentially unhealthy
			// instances" fallback rather than hard-failing.
			n := 2
			if n > len(a.cfg.Instances) {
				n = len(a.cfg.Instances)
			}
			healthy = a.cfg.Instances[:n]
		}

		perInstance := max/len(healthy) + 1
		if perInstance > a.cfg.MaxResultsPerInstance {
			perInstance = a.cfg.MaxResultsPerInstance
		}

		results := fanOut(ctx, healthy, func(ctx context.Context, instance string) ([]videoResult, error) {
			return a.searchInstance(ctx, instance, query, perInstance)
		})

		successCount := 0
		for _, r := range results {
			if r.err == nil {
				successCount++
				a.health.RecordSuccess(r.instance)
			} else {
				cat := platformerr.Unknown.String()
				if pe, ok := platformerr.As(r.err); ok {
					cat = pe.Category.String()
				}
				a.health.RecordFailure(r.instance, cat)
			}
		}

		if successCount == 0 {
			allFailedErr := platformerr.New(platformerr.Network, "peertube",
				fmt.Sprintf("all %d instances failed to respond", len(healthy)), nil)
			allFailedErr.FailedInstanceCount = len(healthy)
			allFailedErr.TotalInstanceCount = len(a.cfg.Instances)
			return nil, allFailedErr
		}

		merged := mergeSortTruncate(results, max)
		out := make([]videotypes.VideoSummary, len(merged))
		for i, v := range merged {
			out[i] = v.summary
		}
		return out, nil
	})
}

type searchResponseItem struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	ThumbnailPath string `json:"thumbnailPath"`
	Description   string `json:"description"`
	Duration      *int   `json:"duration"`
	Views         *int64 `json:"views"`
	Channel       *struct {
		DisplayName string `json:"displayName"`
	} `json:"channel"`
}

type searchResponse struct {
	Data []searchResponseItem `json:"data"`
}

func (a *Adapter) searchInstance(ctx context.Context, instance, query string, count int) ([]videoResult, error) {
	breaker := a.breakerFor(instance)
	var out []videoResult
	err := resilience.WithRetry(ctx, instanceRetryPolicy, breaker, func(ctx context.Context) error {
		sess, err := a.router.Acquire(httprouter.ServicePeerTube)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", "acquiring session", err)
		}

		q := url.Values{}
		q.Set("search", query)
		q.Set("count", fmt.Sprintf("%d", count))
		q.Set("sort", "-views")

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/api/v1/search/videos?"+q.Encode(), nil)
		resp, err := sess.Client.Do(req)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", err.Error(), err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden {
			if a.base.Logger != nil {
				a.base.Logger.WithFields(map[string]interface{}{"instance": instance}).
					Warn("peertube: instance returned 403, may require authentication")
			}
			out = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return platformerr.FromHTTPStatus(resp.StatusCode, "peertube", instance)
		}

		body, _ := io.ReadAll(resp.Body)
		var parsed searchResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return platformerr.New(platformerr.Unknown, "peertube", "decoding search response", err)
		}

		results := make([]videoResult, 0, len(parsed.Data))
		for _, v := range parsed.Data {
			if v.UUID == "" || v.Name == "" {
				continue
			}
			channel := "Unknown"
			if v.Channel != nil && v.Channel.DisplayName != "" {
				channel = v.Channel.DisplayName
			}
			results = append(results, videoResult{summary: videotypes.VideoSummary{
				ID:              v.UUID,
				Title:           v.Name,
				Channel:         channel,
				ThumbnailURL:    instance + v.ThumbnailPath,
				CanonicalURL:    instance + "/videos/watch/" + v.UUID,
				PlatformTag:     "peertube",
				Description:     v.Description,
				DurationSeconds: v.Duration,
				Views:           v.Views,
				Instance:        instance,
			}})
		}
		out = results
		return nil
	})
	return out, err
}

// GetDetails iterates instances in configured order until the first 200,
// mirroring peertube.py's get_video_details "try each instance" loop.
func (a *Adapter) GetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	return a.base.CachedDetails(ctx, id, cacheport.DefaultMetadataTTL, func(ctx context.Context) (*videotypes.VideoDetails, error) {
		for _, instance := range a.cfg.Instances {
			details, err := a.fetchDetailsFromInstance(ctx, instance, id)
			if err == nil && details != nil {
				return details, nil
			}
		}
		return nil, platformerr.New(platformerr.NotFound, "peertube", "video not found on any configured instance", nil)
	})
}

type videoDetailsResponse struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	ThumbnailPath string `json:"thumbnailPath"`
	Description   string `json:"description"`
	Views         *int64 `json:"views"`
	Channel       *struct {
		DisplayName string `json:"displayName"`
	} `json:"channel"`
	Files []struct {
		FileURL  string `json:"fileUrl"`
		Resolution struct {
			Label string `json:"label"`
		} `json:"resolution"`
	} `json:"files"`
}

func (a *Adapter) fetchDetailsFromInstance(ctx context.Context, instance, id string) (*videotypes.VideoDetails, error) {
	breaker := a.breakerFor(instance)
	var details *videotypes.VideoDetails
	err := resilience.WithRetry(ctx, instanceRetryPolicy, breaker, func(ctx context.Context) error {
		sess, err := a.router.Acquire(httprouter.ServicePeerTube)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", "acquiring session", err)
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/api/v1/videos/"+id, nil)
		resp, err := sess.Client.Do(req)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", err.Error(), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return platformerr.FromHTTPStatus(resp.StatusCode, "peertube", instance)
		}
		body, _ := io.ReadAll(resp.Body)
		var v videoDetailsResponse
		if err := json.Unmarshal(body, &v); err != nil {
			return platformerr.New(platformerr.Unknown, "peertube", "decoding details response", err)
		}
		channel := "Unknown"
		if v.Channel != nil && v.Channel.DisplayName != "" {
			channel = v.Channel.DisplayName
		}
		var qualities []string
		for _, f := range v.Files {
			qualities = append(qualities, f.Resolution.Label)
		}
		details = &videotypes.VideoDetails{
			VideoSummary: videotypes.VideoSummary{
				ID:           v.UUID,
				Title:        v.Name,
				Channel:      channel,
				ThumbnailURL: instance + v.ThumbnailPath,
				CanonicalURL: instance + "/videos/watch/" + v.UUID,
				PlatformTag:  "peertube",
				Description:  v.Description,
				Views:        v.Views,
				Instance:     instance,
			},
			AvailableQualities: qualities,
		}
		a.health.RecordSuccess(instance)
		return nil
	})
	if err != nil {
		cat := platformerr.Unknown.String()
		if pe, ok := platformerr.As(err); ok {
			cat = pe.Category.String()
		}
		a.health.RecordFailure(instance, cat)
	}
	return details, err
}

// ExtractStreamURL tries each instance in order for the URL of the first
// file the instance lists (no resolution comparison), the same iteration
// shape as GetDetails.
func (a *Adapter) ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error) {
	return a.base.CachedStreamURL(ctx, id, "best", func(ctx context.Context) (*videotypes.StreamHandle, error) {
		for _, instance := range a.cfg.Instances {
			details, err := a.fetchDetailsFromInstance(ctx, instance, id)
			if err != nil || details == nil {
				continue
			}
			handle, err := a.extractFileURL(ctx, instance, id)
			if err == nil && handle != nil {
				return handle, nil
			}
		}
		return nil, platformerr.New(platformerr.NotFound, "peertube", "no playable file found on any instance", nil)
	})
}

func (a *Adapter) extractFileURL(ctx context.Context, instance, id string) (*videotypes.StreamHandle, error) {
	breaker := a.breakerFor(instance)
	var handle *videotypes.StreamHandle
	err := resilience.WithRetry(ctx, instanceRetryPolicy, breaker, func(ctx context.Context) error {
		sess, err := a.router.Acquire(httprouter.ServicePeerTube)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", "acquiring session", err)
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/api/v1/videos/"+id, nil)
		resp, err := sess.Client.Do(req)
		if err != nil {
			return platformerr.New(platformerr.Network, "peertube", err.Error(), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return platformerr.FromHTTPStatus(resp.StatusCode, "peertube", instance)
		}
		body, _ := io.ReadAll(resp.Body)
		var v videoDetailsResponse
		if err := json.Unmarshal(body, &v); err != nil {
			return platformerr.New(platformerr.Unknown, "peertube", "decoding details response", err)
		}
		if len(v.Files) == 0 {
			return platformerr.New(platformerr.NotFound, "peertube", "no files in video data", nil)
		}
		f := v.Files[0]
		expires := time.Now().Add(30 * time.Minute)
		handle = &videotypes.StreamHandle{DirectURL: f.FileURL, QualityTag: f.Resolution.Label, ExpiresAt: &expires}
		return nil
	})
	return handle, err
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

// Status exposes the per-instance health tracker for method-call reporting.
func (a *Adapter) Status() map[string]videotypes.InstanceHealth { return a.health.Status() }

var _ platform.Adapter = (*Adapter)(nil)
