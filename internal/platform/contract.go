// Package platform defines the Platform Contract (spec.md §4.D): the
// uniform interface every video source implements, plus the shared helpers
// (cache-wrap, resilience-wrap) every adapter embeds. Grounded on
// internal/providers/interfaces.go's LLMProvider interface for the "one
// interface, N concrete structs" shape — Go has no mixins, so the "shared
// helpers" the spec describes are a plain embedded struct (Base), not
// inheritance.
package platform

import (
	"context"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

// Adapter is the sum-type every concrete source implements. In Go this is
// an interface with concrete adapter types, never runtime reflection, per
// spec.md §9.
type Adapter interface {
	Name() string
	Initialize(ctx context.Context) error
	Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error)
	GetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error)
	ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error)
	ClassifyURL(rawURL string) (id string, ok bool)
	OwnsURL(rawURL string) bool
	Shutdown(ctx context.Context) error
}
