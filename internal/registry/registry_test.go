package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tributary-ai/videofed/internal/prioritizer"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

// stubAdapter is a minimal platform.Adapter for registry tests.
type stubAdapter struct {
	name        string
	ownsPrefix  string
	initErr     error
	shutdownErr error
	initialized bool
	shutdown    bool
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Initialize(ctx context.Context) error {
	s.initialized = true
	return s.initErr
}
func (s *stubAdapter) Search(ctx context.Context, query string, max int) ([]videotypes.VideoSummary, error) {
	return nil, nil
}
func (s *stubAdapter) GetDetails(ctx context.Context, id string) (*videotypes.VideoDetails, error) {
	return nil, nil
}
func (s *stubAdapter) ExtractStreamURL(ctx context.Context, id string) (*videotypes.StreamHandle, error) {
	return nil, nil
}
func (s *stubAdapter) ClassifyURL(rawURL string) (string, bool) {
	if s.ownsPrefix != "" && len(rawURL) >= len(s.ownsPrefix) && rawURL[:len(s.ownsPrefix)] == s.ownsPrefix {
		return rawURL[len(s.ownsPrefix):], true
	}
	return "", false
}
func (s *stubAdapter) OwnsURL(rawURL string) bool {
	_, ok := s.ClassifyURL(rawURL)
	return ok
}
func (s *stubAdapter) Shutdown(ctx context.Context) error {
	s.shutdown = true
	return s.shutdownErr
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New(nil, nil)
	yt := &stubAdapter{name: "youtube"}
	r.Register(yt)

	got, ok := r.Get("youtube")
	if !ok || got != yt {
		t.Fatalf("expected Get to return the registered adapter")
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("expected Get to report false for an unregistered name")
	}
}

func TestRegistry_AdapterForURL(t *testing.T) {
	r := New(nil, nil)
	r.Register(&stubAdapter{name: "rumble", ownsPrefix: "https://rumble.com/"})
	r.Register(&stubAdapter{name: "odysee", ownsPrefix: "https://odysee.com/"})

	a, ok := r.AdapterForURL("https://odysee.com/@channel/vid")
	if !ok || a.Name() != "odysee" {
		t.Errorf("expected odysee to own the URL, got %+v ok=%v", a, ok)
	}

	if _, ok := r.AdapterForURL("https://youtube.com/watch?v=x"); ok {
		t.Error("expected no adapter to claim an unregistered platform's URL")
	}
}

func TestRegistry_PlatformsByPriority_NoPrioritizer(t *testing.T) {
	r := New(nil, nil)
	r.Register(&stubAdapter{name: "youtube"})
	r.Register(&stubAdapter{name: "rumble"})

	names := r.PlatformsByPriority()
	if len(names) != 2 {
		t.Fatalf("expected 2 platforms, got %d", len(names))
	}
}

func TestRegistry_PlatformsByPriority_DefersToPrioritizer(t *testing.T) {
	prio := prioritizer.New(nil)
	prio.SetStrategy(prioritizer.SpeedFirst)
	prio.Record("fast", true, 50*time.Millisecond)
	prio.Record("slow", true, 4*time.Second)

	r := New(prio, nil)
	r.Register(&stubAdapter{name: "slow"})
	r.Register(&stubAdapter{name: "fast"})

	order := r.PlatformsByPriority()
	if len(order) != 2 || order[0] != "fast" {
		t.Errorf("expected prioritizer ordering to put fast first, got %v", order)
	}
}

func TestRegistry_Decide(t *testing.T) {
	r := New(nil, nil)
	r.Register(&stubAdapter{name: "youtube"})
	r.Register(&stubAdapter{name: "rumble"})

	decision := r.Decide("youtube", "balanced", []string{"matched by URL ownership"})
	if decision.SelectedPlatform != "youtube" {
		t.Errorf("expected selected platform youtube, got %s", decision.SelectedPlatform)
	}
	if decision.RoutingContext.Strategy != "balanced" {
		t.Errorf("expected strategy balanced, got %s", decision.RoutingContext.Strategy)
	}
	for _, p := range decision.FallbackChain {
		if p == "youtube" {
			t.Error("expected the selected platform excluded from its own fallback chain")
		}
	}
}

func TestRegistry_StartAllStopAll(t *testing.T) {
	r := New(nil, nil)
	a := &stubAdapter{name: "youtube"}
	r.Register(a)

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !a.initialized {
		t.Error("expected StartAll to call Initialize")
	}

	r.StopAll(context.Background())
	if !a.shutdown {
		t.Error("expected StopAll to call Shutdown")
	}
}

func TestRegistry_StartAll_PropagatesError(t *testing.T) {
	r := New(nil, nil)
	r.Register(&stubAdapter{name: "broken", initErr: errors.New("boom")})

	if err := r.StartAll(context.Background()); err == nil {
		t.Error("expected StartAll to propagate an Initialize error")
	}
}
