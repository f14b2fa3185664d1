// Package youtube implements the API-gated platform adapter (spec.md
// §4.E.1): a YouTube-Data-API-shaped search backend, falling back to a
// local media-info extractor for URL-shape queries and all stream
// extraction. Grounded on Tributary-ai-services-tas-llm-router's
// internal/providers/anthropic/provider.go adapter idiom (config struct ->
// constructor -> capability methods -> interface assertion) and
// original_source/src/platforms/youtube.py for URL patterns and search
// shape.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/tributary-ai/videofed/internal/cacheport"
	"github.com/tributary-ai/videofed/internal/cookiejar"
	"github.com/tributary-ai/videofed/internal/fallback"
	"github.com/tributary-ai/videofed/internal/httprouter"
	"github.com/tributary-ai/videofed/internal/mediainfo"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/platform"
	"github.com/tributary-ai/videofed/internal/platformerr"
	"github.com/tributary-ai/videofed/internal/resilience"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Config configures the adapter, yaml-tagged the way the teacher's
// provider configs are.
type Config struct {
	APIKey           string `yaml:"api_key"`
	CookieJSONPath   string `yaml:"cookie_json_path"`
	MediaInfoBinary  string `yaml:"media_info_binary"`
	QuotaLimit       int    `yaml:"quota_limit"` // daily units, default 10000
	ConservationPct  float64 `yaml:"quota_conservation_threshold"` // default 0.8
}

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
}

// Adapter is the API-gated platform (YouTube-shape).
type Adapter struct {
	base platform.Base

	cfg      Config
	router   *httprouter.Router
	fallback *fallback.Engine
	extractor *mediainfo.Pool
	quotaUsed int
}

func New(cfg Config, router *httprouter.Router, breaker *resilience.Breaker, cache cacheport.Port, fb *fallback.Engine, logger *obs.Logger) *Adapter {
	if cfg.QuotaLimit <= 0 {
		cfg.QuotaLimit = 10000
	}
	if cfg.ConservationPct <= 0 {
		cfg.ConservationPct = 0.8
	}
	return &Adapter{
		base: platform.Base{
			PlatformName: "youtube",
			Cache:        cache,
			Breaker:      breaker,
			RetryPolicy:  resilience.DefaultPolicy(),
			Logger:       logger,
			URLPatterns:  urlPatterns,
		},
		cfg:       cfg,
		router:    router,
		fallback:  fb,
		extractor: mediainfo.NewPool(cfg.MediaInfoBinary, mediainfo.DefaultDepth),
	}
}

func (a *Adapter) Name() string { return "youtube" }

func (a *Adapter) Initialize(ctx context.Context) error {
	if a.cfg.APIKey == "" && a.base.Logger != nil {
		a.base.Logger.Warn("youtube: no API key configured, search limited to direct URLs")
	}
	if a.fallback != nil {
		_, _ = a.fallback.Activate(ctx, "youtube", "startup")
	}
	return nil
}

func (a *Adapter) ClassifyURL(rawURL string) (string, bool) { return a.base.ClassifyByPattern(rawURL) }
func (a *Adapter) OwnsURL(rawURL string) bool                { return a.base.OwnsURL(rawURL) }

// Search implements spec.md §4.E.1: URL-shape queries bypass the API and
// return exactly one hit built from the parsed id alone (the media-info
// extractor is not invoked, and the title is the id); otherwise an API
// key is required or AuthRequired is raised.
func (a *Adapter) Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	if id, ok := a.ClassifyURL(query); ok {
		summary, err := a.searchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return []videotypes.VideoSummary{*summary}, nil
	}

	if a.cfg.APIKey == "" {
		return nil, platformerr.New(platformerr.Auth, "youtube", "no API key configured and query is not a URL", nil)
	}

	return a.base.CachedSearch(ctx, query, cacheport.DefaultMetadataTTL, func(ctx context.Context) ([]videotypes.VideoSummary, error) {
		var results []videotypes.VideoSummary
		err := a.base.WrapCall(ctx, func(ctx context.Context) error {
			r, err := a.apiSearch(ctx, query, max)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
		return results, err
	})
}

func (a *Adapter) searchByID(ctx context.Context, id string) (*videotypes.VideoSummary, error) {
	return &videotypes.VideoSummary{
		ID:           id,
		Title:        id, // populated fully by GetDetails; search-by-URL only needs the id, per spec S1
		CanonicalURL: "https://www.youtube.com/watch?v=" + id,
		PlatformTag:  "youtube",
	}, nil
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Description  string `json:"description"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (a *Adapter) apiSearch(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	sess, err := a.router.Acquire(httprouter.ServiceYouTube)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "youtube", "acquiring session", err)
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("maxResults", fmt.Sprintf("%d", max))
	q.Set("key", a.cfg.APIKey)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/youtube/v3/search?"+q.Encode(), nil)
	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "youtube", err.Error(), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var parsed youtubeSearchResponse
		_ = json.Unmarshal(body, &parsed)
		if parsed.Error != nil {
			for _, e := range parsed.Error.Errors {
				if e.Reason == "quotaExceeded" {
					a.quotaUsed = a.cfg.QuotaLimit
					if a.fallback != nil {
						_, _ = a.fallback.Activate(ctx, "youtube", "quota_exceeded")
					}
					return nil, platformerr.New(platformerr.RateLimit, "youtube", "quotaExceeded", nil)
				}
			}
		}
		return nil, platformerr.FromHTTPStatus(resp.StatusCode, "youtube", string(body))
	}

	var parsed youtubeSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, platformerr.New(platformerr.Unknown, "youtube", "decoding search response", err)
	}

	a.quotaUsed += 100 // search.list costs 100 units
	if float64(a.quotaUsed)/float64(a.cfg.QuotaLimit) >= a.cfg.ConservationPct && a.fallback != nil {
		_, _ = a.fallback.Activate(ctx, "youtube", "quota_conservation_threshold")
	}

	results := make([]videotypes.VideoSummary, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, videotypes.VideoSummary{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Channel:      item.Snippet.ChannelTitle,
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			CanonicalURL: "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			PlatformTag:  "youtube",
			Description:  item.Snippet.Description,
		})
	}
	return results, nil
}

func (a *Adapter) GetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	return a.base.CachedDetails(ctx, id, cacheport.DefaultMetadataTTL, func(ctx context.Context) (*videotypes.VideoDetails, error) {
		if a.cfg.APIKey == "" {
			return &videotypes.VideoDetails{
				VideoSummary: videotypes.VideoSummary{
					ID:           id,
					CanonicalURL: "https://www.youtube.com/watch?v=" + id,
					PlatformTag:  "youtube",
				},
			}, nil
		}
		var details *videotypes.VideoDetails
		err := a.base.WrapCall(ctx, func(ctx context.Context) error {
			d, err := a.apiGetDetails(ctx, id)
			details = d
			return err
		})
		return details, err
	})
}

func (a *Adapter) apiGetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	sess, err := a.router.Acquire(httprouter.ServiceYouTube)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "youtube", "acquiring session", err)
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("id", id)
	q.Set("key", a.cfg.APIKey)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/youtube/v3/videos?"+q.Encode(), nil)
	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil, platformerr.New(platformerr.Network, "youtube", err.Error(), err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, platformerr.FromHTTPStatus(resp.StatusCode, "youtube", string(body))
	}

	var parsed struct {
		Items []struct {
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
			Statistics struct {
				ViewCount string `json:"viewCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, platformerr.New(platformerr.Unknown, "youtube", "decoding details response", err)
	}
	if len(parsed.Items) == 0 {
		return nil, platformerr.New(platformerr.NotFound, "youtube", "video not found", nil)
	}
	item := parsed.Items[0]
	return &videotypes.VideoDetails{
		VideoSummary: videotypes.VideoSummary{
			ID:           id,
			Title:        item.Snippet.Title,
			Channel:      item.Snippet.ChannelTitle,
			CanonicalURL: "https://www.youtube.com/watch?v=" + id,
			PlatformTag:  "youtube",
		},
	}, nil
}

// extractorFormat is the minimal shape read out of the media-info
// extractor's JSON output.
type extractorFormat struct {
	URL       string `json:"url"`
	ABR       float64 `json:"abr"` // audio bitrate, kbps; 0 if video-only
	VCodec    string  `json:"vcodec"`
	ACodec    string  `json:"acodec"`
}

type extractorOutput struct {
	Formats []extractorFormat `json:"formats"`
}

// ExtractStreamURL always uses the local media-info extractor regardless
// of API key, per spec.md §4.E.1. If a cookie file is configured, it is
// converted to Netscape format and attached.
func (a *Adapter) ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error) {
	return a.base.CachedStreamURL(ctx, id, "best", func(ctx context.Context) (*videotypes.StreamHandle, error) {
		args := []string{"-j"}
		if a.cfg.CookieJSONPath != "" {
			cookiePath, err := cookiejar.ConvertFile(a.cfg.CookieJSONPath)
			if err == nil {
				args = append(args, "--cookies", cookiePath)
			} else if a.base.Logger != nil {
				a.base.Logger.Warn("youtube: cookie conversion failed, continuing without cookies")
			}
		}

		result, err := a.extractor.WithTimeout(ctx, 30*time.Second, "youtube", "https://www.youtube.com/watch?v="+id, args...)
		if err != nil {
			return nil, err
		}

		var out extractorOutput
		if err := json.Unmarshal(result.Stdout, &out); err != nil {
			return nil, platformerr.New(platformerr.Unknown, "youtube", "decoding media-info output", err)
		}

		chosen := selectFormat(out.Formats)
		if chosen == nil {
			return nil, platformerr.New(platformerr.NotFound, "youtube", "no playable format found", nil)
		}

		expires := time.Now().Add(30 * time.Minute)
		return &videotypes.StreamHandle{
			DirectURL:  chosen.URL,
			QualityTag: qualityTag(*chosen),
			ExpiresAt:  &expires,
		}, nil
	})
}

// selectFormat implements spec.md §4.E.1's format-selection order: best
// audio-only -> highest-bitrate audio-containing format -> any format with
// a URL.
func selectFormat(formats []extractorFormat) *extractorFormat {
	var audioOnly []extractorFormat
	var audioContaining []extractorFormat
	var anyWithURL []extractorFormat

	for _, f := range formats {
		if f.URL == "" {
			continue
		}
		anyWithURL = append(anyWithURL, f)
		if f.ACodec != "" && f.ACodec != "none" {
			if f.VCodec == "" || f.VCodec == "none" {
				audioOnly = append(audioOnly, f)
			} else {
				audioContaining = append(audioContaining, f)
			}
		}
	}

	if len(audioOnly) > 0 {
		sort.Slice(audioOnly, func(i, j int) bool { return audioOnly[i].ABR > audioOnly[j].ABR })
		return &audioOnly[0]
	}
	if len(audioContaining) > 0 {
		sort.Slice(audioContaining, func(i, j int) bool { return audioContaining[i].ABR > audioContaining[j].ABR })
		return &audioContaining[0]
	}
	if len(anyWithURL) > 0 {
		return &anyWithURL[0]
	}
	return nil
}

func qualityTag(f extractorFormat) string {
	if f.ACodec != "" && f.ACodec != "none" && (f.VCodec == "" || f.VCodec == "none") {
		return "audio"
	}
	return "av"
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

var _ platform.Adapter = (*Adapter)(nil)
