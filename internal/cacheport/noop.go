package cacheport

import (
	"context"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

// NoopPort never stores anything; every get is a miss. It exists so the
// Registry can always wire a Port even when no cache backend is
// configured, per spec.md §4.C: "the core never requires a cache".
type NoopPort struct{}

func NewNoopPort() *NoopPort { return &NoopPort{} }

func (NoopPort) GetSearchResults(context.Context, string, string) ([]videotypes.VideoSummary, bool) {
	return nil, false
}
func (NoopPort) SetSearchResults(context.Context, string, string, []videotypes.VideoSummary, time.Duration) {
}

func (NoopPort) GetVideoMetadata(context.Context, string, string) (*videotypes.VideoDetails, bool) {
	return nil, false
}
func (NoopPort) SetVideoMetadata(context.Context, string, string, *videotypes.VideoDetails, time.Duration) {
}

func (NoopPort) GetStreamURL(context.Context, string, string, string) (*videotypes.StreamHandle, bool) {
	return nil, false
}
func (NoopPort) SetStreamURL(context.Context, string, string, string, *videotypes.StreamHandle, time.Duration) {
}

func (NoopPort) Metrics() Metrics { return Metrics{} }

var _ Port = NoopPort{}
