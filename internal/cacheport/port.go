// Package cacheport is the abstract typed KV cache every adapter consults
// before hitting its backend. The core never requires a cache — NoopPort is
// a valid, always-miss implementation — so adapters can be constructed and
// tested without wiring a real backend, per spec.md §4.C.
package cacheport

import (
	"context"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Default TTLs from spec.md §4.C: stream URLs are short-lived because
// direct URLs expire; metadata is comparatively stable.
const (
	DefaultStreamTTL   = 30 * time.Minute
	DefaultMetadataTTL = 2 * time.Hour
)

// Metrics is a point-in-time snapshot of cache effectiveness.
type Metrics struct {
	Hits   int64
	Misses int64
}

// Port is the typed abstract cache. All accessors are nullable-returning —
// a miss is not an error.
type Port interface {
	GetSearchResults(ctx context.Context, platform, query string) ([]videotypes.VideoSummary, bool)
	SetSearchResults(ctx context.Context, platform, query string, results []videotypes.VideoSummary, ttl time.Duration)

	GetVideoMetadata(ctx context.Context, platform, id string) (*videotypes.VideoDetails, bool)
	SetVideoMetadata(ctx context.Context, platform, id string, details *videotypes.VideoDetails, ttl time.Duration)

	GetStreamURL(ctx context.Context, platform, id, quality string) (*videotypes.StreamHandle, bool)
	SetStreamURL(ctx context.Context, platform, id, quality string, handle *videotypes.StreamHandle, ttl time.Duration)

	Metrics() Metrics
}

// Cache key conventions, spec.md §6.
func searchKey(platform, query string) string   { return "search:" + platform + ":" + query }
func metaKey(platform, id string) string        { return "meta:" + platform + ":" + id }
func streamKey(platform, id, quality string) string {
	return "stream:" + platform + ":" + id + ":" + quality
}
