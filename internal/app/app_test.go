package app

import (
	"context"
	"testing"

	"github.com/tributary-ai/videofed/internal/config"
	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/videotypes"
)

func testLogger(t *testing.T) *obs.Logger {
	t.Helper()
	logger, err := obs.NewLogger(obs.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func TestNew_RegistersEveryEnabledPlatform(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	a, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, name := range cfg.EnabledPlatforms() {
		if _, ok := a.Registry.Get(name); !ok {
			t.Errorf("expected %s registered in the Registry", name)
		}
	}
}

func TestNew_UnknownPlatformSkippedNotFailed(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	cfg.Platforms = append(cfg.Platforms, videotypes.PlatformConfig{Name: "not-a-real-platform", Enabled: true})

	if _, err := New(cfg, testLogger(t)); err != nil {
		t.Fatalf("expected an unrecognized platform name to be skipped, not fail New: %v", err)
	}
}

func TestApp_HealthReport_ReflectsRegisteredPlatforms(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	a, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := a.HealthReport()
	for _, name := range cfg.EnabledPlatforms() {
		if _, ok := report[name]; !ok {
			t.Errorf("expected %s present in health report", name)
		}
	}
}

func TestApp_SelectPlatform_ByURLOwnership(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	a, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	adapter, decision := a.SelectPlatform("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if adapter == nil || adapter.Name() != "youtube" {
		t.Fatalf("expected youtube selected by URL ownership, got %+v", adapter)
	}
	if decision.SelectedPlatform != "youtube" {
		t.Errorf("expected decision.SelectedPlatform=youtube, got %s", decision.SelectedPlatform)
	}
}

func TestApp_SelectPlatform_FallsBackToPrioritizerOrdering(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	a, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	adapter, decision := a.SelectPlatform("")
	if adapter == nil {
		t.Fatal("expected a platform selected by prioritizer ordering when no URL is given")
	}
	if decision.SelectedPlatform == "" {
		t.Error("expected a non-empty selected platform in the routing decision")
	}
}

func TestApp_StartStop(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	cfg.Fallback.Enabled = false

	a, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	a.Stop(ctx)
}
