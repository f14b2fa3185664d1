package cacheport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired() bool { return time.Now().After(e.expiresAt) }

// MemoryPort is the default in-process cache: a map guarded by a mutex,
// with lazy expiry checked on read. Readers may race with a concurrent
// writer for the same key; the cache provides at-most-once *publication*,
// not coordination, matching spec.md §5's ordering guarantee ("readers may
// race and both miss; last writer wins").
type MemoryPort struct {
	mu    sync.RWMutex
	store map[string]entry

	hits   int64
	misses int64
}

func NewMemoryPort() *MemoryPort {
	return &MemoryPort{store: make(map[string]entry)}
}

func (m *MemoryPort) get(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok || e.expired() {
		atomic.AddInt64(&m.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&m.hits, 1)
	return e.value, true
}

func (m *MemoryPort) set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *MemoryPort) GetSearchResults(_ context.Context, platform, query string) ([]videotypes.VideoSummary, bool) {
	v, ok := m.get(searchKey(platform, query))
	if !ok {
		return nil, false
	}
	results, ok := v.([]videotypes.VideoSummary)
	return results, ok
}

func (m *MemoryPort) SetSearchResults(_ context.Context, platform, query string, results []videotypes.VideoSummary, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	if len(results) == 0 {
		return // cache-wrap only writes back non-empty results, per spec.md §4.D
	}
	m.set(searchKey(platform, query), results, ttl)
}

func (m *MemoryPort) GetVideoMetadata(_ context.Context, platform, id string) (*videotypes.VideoDetails, bool) {
	v, ok := m.get(metaKey(platform, id))
	if !ok {
		return nil, false
	}
	details, ok := v.(*videotypes.VideoDetails)
	return details, ok
}

func (m *MemoryPort) SetVideoMetadata(_ context.Context, platform, id string, details *videotypes.VideoDetails, ttl time.Duration) {
	if details == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	m.set(metaKey(platform, id), details, ttl)
}

func (m *MemoryPort) GetStreamURL(_ context.Context, platform, id, quality string) (*videotypes.StreamHandle, bool) {
	v, ok := m.get(streamKey(platform, id, quality))
	if !ok {
		return nil, false
	}
	handle, ok := v.(*videotypes.StreamHandle)
	return handle, ok
}

func (m *MemoryPort) SetStreamURL(_ context.Context, platform, id, quality string, handle *videotypes.StreamHandle, ttl time.Duration) {
	if handle == nil {
		return
	}
	if ttl <= 0 || ttl > DefaultStreamTTL {
		ttl = DefaultStreamTTL
	}
	m.set(streamKey(platform, id, quality), handle, ttl)
}

func (m *MemoryPort) Metrics() Metrics {
	return Metrics{
		Hits:   atomic.LoadInt64(&m.hits),
		Misses: atomic.LoadInt64(&m.misses),
	}
}

var _ Port = (*MemoryPort)(nil)
