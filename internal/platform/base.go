package platform

import (
	"context"
	"regexp"
	"time"

	"github.com/tributary-ai/videofed/internal/cacheport"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/resilience"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Base is the shared helper every concrete adapter embeds: cache-wrap,
// resilience-wrap, and URL classification against a fixed pattern list.
// Go has no mixins, so this is composition (embedding), not inheritance —
// spec.md §9 calls this out explicitly.
type Base struct {
	PlatformName string
	Cache        cacheport.Port
	Breaker      *resilience.Breaker
	RetryPolicy  resilience.Policy
	Logger       *obs.Logger
	URLPatterns  []*regexp.Regexp
}

// WrapCall runs fn through the Resilience Kernel — every public operation
// MUST route outbound I/O through this, per spec.md §4.D.
func (b *Base) WrapCall(ctx context.Context, fn func(context.Context) error) error {
	return resilience.WithRetry(ctx, b.RetryPolicy, b.Breaker, fn)
}

// CachedSearch consults the cache first and writes back non-empty results
// on success, per spec.md §4.D's cache-wrap contract.
func (b *Base) CachedSearch(ctx context.Context, query string, ttl time.Duration, fetch func(context.Context) ([]videotypes.VideoSummary, error)) ([]videotypes.VideoSummary, error) {
	if b.Cache != nil {
		if cached, ok := b.Cache.GetSearchResults(ctx, b.PlatformName, query); ok {
			return cached, nil
		}
	}
	results, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if b.Cache != nil && len(results) > 0 {
		b.Cache.SetSearchResults(ctx, b.PlatformName, query, results, ttl)
	}
	return results, nil
}

// CachedDetails consults the cache first and writes back a non-nil result.
func (b *Base) CachedDetails(ctx context.Context, id string, ttl time.Duration, fetch func(context.Context) (*videotypes.VideoDetails, error)) (*videotypes.VideoDetails, error) {
	if b.Cache != nil {
		if cached, ok := b.Cache.GetVideoMetadata(ctx, b.PlatformName, id); ok {
			return cached, nil
		}
	}
	details, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if b.Cache != nil && details != nil {
		b.Cache.SetVideoMetadata(ctx, b.PlatformName, id, details, ttl)
	}
	return details, nil
}

// CachedStreamURL consults the cache first and writes back a non-nil
// result, capping the write-back TTL at the stream-URL default (30m)
// regardless of what the caller passes, since direct URLs expire quickly.
func (b *Base) CachedStreamURL(ctx context.Context, id, quality string, fetch func(context.Context) (*videotypes.StreamHandle, error)) (*videotypes.StreamHandle, error) {
	if b.Cache != nil {
		if cached, ok := b.Cache.GetStreamURL(ctx, b.PlatformName, id, quality); ok {
			return cached, nil
		}
	}
	handle, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if b.Cache != nil && handle != nil {
		b.Cache.SetStreamURL(ctx, b.PlatformName, id, quality, handle, cacheport.DefaultStreamTTL)
	}
	return handle, nil
}

// ClassifyByPattern runs rawURL against the adapter's fixed pattern list,
// returning the first capture group as the opaque id.
func (b *Base) ClassifyByPattern(rawURL string) (string, bool) {
	for _, re := range b.URLPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil && len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// OwnsURL reports whether any configured pattern matches rawURL.
func (b *Base) OwnsURL(rawURL string) bool {
	_, ok := b.ClassifyByPattern(rawURL)
	return ok
}
