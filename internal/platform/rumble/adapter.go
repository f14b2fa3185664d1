// Package rumble implements the paid-actor-runner platform adapter
// (spec.md §4.E.2): search, metadata, and stream extraction are all
// delegated to a hosted actor run (Apify-shaped), authenticated by a single
// bearer token. Grounded on
// original_source/src/platforms/rumble.py and
// original_source/src/extractors/rumble_extractor.py.
package rumble

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
	APIToken   string        `yaml:"api_token"`
	ActorID    string        `yaml:"actor_id"`    // default "junglee/rumble-video-extractor"
	SearchActorID string     `yaml:"search_actor_id"`
	Timeout    time.Duration `yaml:"timeout"` // default 60s
}

func (c Config) withDefaults() Config {
	if c.ActorID == "" {
		c.ActorID = "junglee/rumble-video-extractor"
	}
	if c.SearchActorID == "" {
		c.SearchActorID = "junglee/rumble-search"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rumble\.com/(v[A-Za-z0-9]+)(?:-[^/?]*)?`),
	regexp.MustCompile(`rumble\.com/embed/(v[A-Za-z0-9]+)(?:[/?].*)?$`),
}

// Adapter is the paid-actor-runner platform (Rumble-shape).
type Adapter struct {
	base   platform.Base
	cfg    Config
	router *httprouter.Router
}

func New(cfg Config, router *httprouter.Router, breaker *resilience.Breaker, cache cacheport.Port, logger *obs.Logger) *Adapter {
	cfg = cfg.withDefaults()
	return &Adapter{
		base: platform.Base{
			PlatformName: "rumble",
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

func (a *Adapter) Name() string { return "rumble" }

func (a *Adapter) Initialize(ctx context.Context) error {
	if a.cfg.APIToken == "" && a.base.Logger != nil {
		a.base.Logger.Warn("rumble: no API token configured, platform disabled")
	}
	return nil
}

func (a *Adapter) ClassifyURL(rawURL string) (string, bool) { return a.base.ClassifyByPattern(rawURL) }
func (a *Adapter) OwnsURL(rawURL string) bool                { return a.base.OwnsURL(rawURL) }

func (a *Adapter) Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	if a.cfg.APIToken == "" {
		if a.base.Logger != nil {
			a.base.Logger.Warn("rumble: search attempted without API token, returning empty")
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
	ID          string `json:"id"`
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	ThumbnailURL string `json:"thumbnail_url"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	ViewCount   int64  `json:"view_count"`
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
		return nil, platformerr.New(platformerr.Unknown, "rumble", "decoding search actor output", err)
	}

	results := make([]videotypes.VideoSummary, 0, len(raw))
	for _, v := range raw {
		if v.ID == "" || v.Title == "" {
			continue
		}
		url := v.URL
		if url == "" {
			url = "https://rumble.com/" + v.ID
		}
		duration := v.Duration
		views := v.ViewCount
		results = append(results, videotypes.VideoSummary{
			ID:              v.ID,
			Title:           v.Title,
			Channel:         orDefault(v.Uploader, "Unknown"),
			ThumbnailURL:    v.ThumbnailURL,
			CanonicalURL:    url,
			PlatformTag:     "rumble",
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
	Uploader  string `json:"uploader"`
	ViewCount int64  `json:"view_count"`
}

func (a *Adapter) runActorMetadata(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	canonical := "https://rumble.com/" + id
	items, err := a.callActor(ctx, a.cfg.ActorID, map[string]interface{}{"urls": []string{canonical}})
	if err != nil {
		return nil, err
	}
	var raw []actorMetadataItem
	if err := json.Unmarshal(items, &raw); err != nil || len(raw) == 0 {
		return nil, platformerr.New(platformerr.NotFound, "rumble", "no metadata returned", err)
	}
	views := raw[0].ViewCount
	return &videotypes.VideoDetails{
		VideoSummary: videotypes.VideoSummary{
			ID:           id,
			Title:        raw[0].Title,
			Channel:      raw[0].Uploader,
			CanonicalURL: canonical,
			PlatformTag:  "rumble",
			Views:        &views,
		},
	}, nil
}

// ExtractStreamURL requests a download-enabled actor run and always asks
// selectStream for "best": the item's videoUrl when set, else streams[0].
// selectStream's medium (streams[len/2]) and low (streams[len-1]) choices,
// from rumble_extractor.py's download_audio, are not requested here.
func (a *Adapter) ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error) {
	return a.base.CachedStreamURL(ctx, id, "best", func(ctx context.Context) (*videotypes.StreamHandle, error) {
		canonical := "https://rumble.com/" + id
		items, err := a.callActor(ctx, a.cfg.ActorID, map[string]interface{}{
			"urls":          []string{canonical},
			"downloadVideo": true,
			"proxyConfig":   map[string]interface{}{"useApifyProxy": true},
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
			return nil, platformerr.New(platformerr.NotFound, "rumble", "no stream data returned", err)
		}
		item := raw[0]

		streamURL, quality := selectStream(item.VideoURL, item.VideoStreams, "best")
		if streamURL == "" {
			return nil, platformerr.New(platformerr.NotFound, "rumble", "stream URL is empty", nil)
		}

		expires := time.Now().Add(30 * time.Minute)
		return &videotypes.StreamHandle{DirectURL: streamURL, QualityTag: quality, ExpiresAt: &expires}, nil
	})
}

func selectStream(directURL string, streams []struct{ URL string `json:"url"` }, quality string) (string, string) {
	if quality == "best" && directURL != "" {
		return directURL, "best"
	}
	if len(streams) == 0 {
		return "", ""
	}
	switch quality {
	case "medium":
		if len(streams) > 1 {
			return streams[len(streams)/2].URL, "medium"
		}
	case "low":
		return streams[len(streams)-1].URL, "low"
	}
	return streams[0].URL, "best"
}

// callActor runs an Apify-shaped actor synchronously and returns its
// dataset items as raw JSON.
func (a *Adapter) callActor(ctx context.Context, actorID string, input map[string]interface{}) ([]byte, error) {
	sess, err := a.router.Acquire(httprouter.ServiceRumble)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "rumble", "acquiring session", err)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, platformerr.New(platformerr.Unknown, "rumble", "encoding actor input", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("https://api.apify.com/v2/acts/%s/run-sync-get-dataset-items?token=%s", actorID, a.cfg.APIToken)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, platformerr.New(platformerr.Unknown, "rumble", "building actor request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sess.Client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, platformerr.New(platformerr.Timeout, "rumble", "actor call timed out", err)
		}
		return nil, platformerr.New(platformerr.Network, "rumble", err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, platformerr.FromHTTPStatus(resp.StatusCode, "rumble", string(respBody))
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
