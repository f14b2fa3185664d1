// Package odysee implements the proprietary-scraper platform adapter
// (spec.md §4.E.4): "similar contract to 4.E.2 but against a different
// backend; omitted details track 4.E.2" — this adapter mirrors rumble's
// actor-runner shape (search/get_details/extract_stream_url via a hosted
// actor run) against Odysee's own actor IDs and URL shape. It is a
// near-duplicate of internal/platform/rumble by design (same contract,
// different backend, per spec.md §4.E.4), not a thin wrapper around it —
// wrapping would leak rumble's hardcoded canonical-URL host and platform
// tag into Odysee results.
package odysee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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
	APIToken      string        `yaml:"api_token"`
	ActorID       string        `yaml:"actor_id"`
	SearchActorID string        `yaml:"search_actor_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.ActorID == "" {
		c.ActorID = "videofed/odysee-video-extractor"
	}
	if c.SearchActorID == "" {
		c.SearchActorID = "videofed/odysee-search"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`odysee\.com/@[^/]+/([A-Za-z0-9_-]+)(?:[:/?].*)?$`),
}

// Adapter is the proprietary-scraper platform (Odysee-shape).
type Adapter struct {
	base   platform.Base
	cfg    Config
	router *httprouter.Router
}

func New(cfg Config, router *httprouter.Router, breaker *resilience.Breaker, cache cacheport.Port, logger *obs.Logger) *Adapter {
	cfg = cfg.withDefaults()
	return &Adapter{
		base: platform.Base{
			PlatformName: "odysee",
			Cache:        cache,
			Breaker:      breaker,
			RetryPolicy:  resilience.DefaultPolicy(),
			Logger:       logger,
			URLPatterns:  urlPatterns,
		},
		cfg:    cfg,
		router: router,
	}
}

func (a *Adapter) Name() string { return "odysee" }

func (a *Adapter) Initialize(ctx context.Context) error {
	if a.cfg.APIToken == "" && a.base.Logger != nil {
		a.base.Logger.Warn("odysee: no API token configured, platform disabled")
	}
	return nil
}

func (a *Adapter) ClassifyURL(rawURL string) (string, bool) { return a.base.ClassifyByPattern(rawURL) }
func (a *Adapter) OwnsURL(rawURL string) bool                { return a.base.OwnsURL(rawURL) }

func (a *Adapter) Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	if a.cfg.APIToken == "" {
		if a.base.Logger != nil {
			a.base.Logger.Warn("odysee: search attempted without API token, returning empty")
		}
		return nil, nil
	}

	return a.base.CachedSearch(ctx, query, cacheport.DefaultMetadataTTL, func(ctx context.Context) ([]videotypes.VideoSummary, error) {
		var results []videotypes.VideoSummary
		err := a.base.WrapCall(ctx, func(ctx context.Context) error {
			r, err := a.runActorSearch(ctx, query, max)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
		return results, err
	})
}

type actorSearchItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Channel      string `json:"channel"`
	ThumbnailURL string `json:"thumbnail_url"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	ViewCount    int64  `json:"view_count"`
}

func (a *Adapter) runActorSearch(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	items, err := a.callActor(ctx, a.cfg.SearchActorID, map[string]interface{}{
		"query":      query,
		"maxResults": max,
	})
	if err != nil {
		return nil, err
	}

	var raw []actorSearchItem
	if err := json.Unmarshal(items, &raw); err != nil {
		return nil, platformerr.New(platformerr.Unknown, "odysee", "decoding search actor output", err)
	}

	results := make([]videotypes.VideoSummary, 0, len(raw))
	for _, v := range raw {
		if v.ID == "" || v.Title == "" {
			continue
		}
		url := v.URL
		if url == "" {
			url = "https://odysee.com/" + v.ID
		}
		duration := v.Duration
		views := v.ViewCount
		results = append(results, videotypes.VideoSummary{
			ID:              v.ID,
			Title:           v.Title,
			Channel:         orDefault(v.Channel, "Unknown"),
			ThumbnailURL:    v.ThumbnailURL,
			CanonicalURL:    url,
			PlatformTag:     "odysee",
			Description:     v.Description,
			DurationSeconds: &duration,
			Views:           &views,
		})
	}
	return results, nil
}

func (a *Adapter) GetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	return a.base.CachedDetails(ctx, id, cacheport.DefaultMetadataTTL, func(ctx context.Context) (*videotypes.VideoDetails, error) {
		var details *videotypes.VideoDetails
		err := a.base.WrapCall(ctx, func(ctx context.Context) error {
			d, err := a.runActorMetadata(ctx, id)
			details = d
			return err
		})
		return details, err
	})
}

type actorMetadataItem struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	ViewCount int64  `json:"view_count"`
}

func (a *Adapter) runActorMetadata(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	canonical := "https://odysee.com/" + id
	items, err := a.callActor(ctx, a.cfg.ActorID, map[string]interface{}{"urls": []string{canonical}})
	if err != nil {
		return nil, err
	}
	var raw []actorMetadataItem
	if err := json.Unmarshal(items, &raw); err != nil || len(raw) == 0 {
		return nil, platformerr.New(platformerr.NotFound, "odysee", "no metadata returned", err)
	}
	views := raw[0].ViewCount
	return &videotypes.VideoDetails{
		VideoSummary: videotypes.VideoSummary{
			ID:           id,
			Title:        raw[0].Title,
			Channel:      raw[0].Channel,
			CanonicalURL: canonical,
			PlatformTag:  "odysee",
			Views:        &views,
		},
	}, nil
}

// ExtractStreamURL always returns the "best" stream: the direct videoUrl
// when present, else the first entry of the videoStreams list. No
// medium/low selection is made.
func (a *Adapter) ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error) {
	return a.base.CachedStreamURL(ctx, id, "best", func(ctx context.Context) (*videotypes.StreamHandle, error) {
		canonical := "https://odysee.com/" + id
		items, err := a.callActor(ctx, a.cfg.ActorID, map[string]interface{}{
			"urls":          []string{canonical},
			"downloadVideo": true,
		})
		if err != nil {
			return nil, err
		}

		var raw []struct {
			VideoURL     string `json:"videoUrl"`
			VideoStreams []struct {
				URL string `json:"url"`
			} `json:"videoStreams"`
		}
		if err := json.Unmarshal(items, &raw); err != nil || len(raw) == 0 {
			return nil, platformerr.New(platformerr.NotFound, "odysee", "no stream data returned", err)
		}
		item := raw[0]

		streamURL := item.VideoURL
		if streamURL == "" && len(item.VideoStreams) > 0 {
			streamURL = item.VideoStreams[0].URL
		}
		if streamURL == "" {
			return nil, platformerr.New(platformerr.NotFound, "odysee", "stream URL is empty", nil)
		}

		expires := time.Now().Add(30 * time.Minute)
		return &videotypes.StreamHandle{DirectURL: streamURL, QualityTag: "best", ExpiresAt: &expires}, nil
	})
}

func (a *Adapter) callActor(ctx context.Context, actorID string, input map[string]interface{}) ([]byte, error) {
	sess, err := a.router.Acquire(httprouter.ServiceOdysee)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "odysee", "acquiring session", err)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, platformerr.New(platformerr.Unknown, "odysee", "encoding actor input", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("https://api.apify.com/v2/acts/%s/run-sync-get-dataset-items?token=%s", actorID, a.cfg.APIToken)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, platformerr.New(platformerr.Unknown, "odysee", "building actor request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sess.Client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, platformerr.New(platformerr.Timeout, "odysee", "actor call timed out", err)
		}
		return nil, platformerr.New(platformerr.Network, "odysee", err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, platformerr.FromHTTPStatus(resp.StatusCode, "odysee", string(respBody))
	}
	return respBody, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

var _ platform.Adapter = (*Adapter)(nil)
