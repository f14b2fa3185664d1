package fallback

import "testing"

func TestEngine_Activate_SelectsHighestPriorityStrategy(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)

	strategy, err := e.Activate(nil, "youtube", "quota exhausted")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if strategy.Mode != string(APIGatedPrimary) {
		t.Errorf("expected first activation to select %q, got %q", APIGatedPrimary, strategy.Mode)
	}

	mode, ok := e.ActiveMode("youtube")
	if !ok || mode != string(APIGatedPrimary) {
		t.Errorf("ActiveMode = (%q, %v), want (%q, true)", mode, ok, APIGatedPrimary)
	}
}

func TestEngine_Activate_Disabled(t *testing.T) {
	e := NewEngine(Config{Enabled: false}, nil)
	if _, err := e.Activate(nil, "youtube", "test"); err == nil {
		t.Error("expected Activate to fail when fallbacks are disabled")
	}
}

func TestEngine_Activate_UnknownPlatform(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)
	if _, err := e.Activate(nil, "not-a-platform", "test"); err == nil {
		t.Error("expected Activate to fail for a platform with no strategy table")
	}
}

func TestEngine_Deactivate(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)
	if e.Deactivate("rumble", "never activated") {
		t.Error("expected Deactivate to report false when nothing was active")
	}

	if _, err := e.Activate(nil, "rumble", "testing"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !e.Deactivate("rumble", "recovered") {
		t.Error("expected Deactivate to report true after an active fallback")
	}
	if _, ok := e.ActiveMode("rumble"); ok {
		t.Error("expected no active mode after Deactivate")
	}
}

func TestEngine_Restricted(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)
	if _, err := e.Activate(nil, "odysee", "forced"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	restricted, reason := e.Restricted("odysee", "private_content")
	if !restricted || reason == "" {
		t.Errorf("expected public-only mode to restrict private_content, got restricted=%v reason=%q", restricted, reason)
	}

	restricted, _ = e.Restricted("odysee", "search")
	if restricted {
		t.Error("expected public-only mode to permit plain search")
	}
}

func TestEngine_Report_TracksHistory(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)
	if _, err := e.Activate(nil, "peertube", "instance down"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	e.Deactivate("peertube", "instance recovered")

	state := e.Report("peertube")
	if state.ActiveStrategy != nil {
		t.Error("expected no active strategy after deactivation")
	}
	if len(state.History) != 2 {
		t.Fatalf("expected 2 history entries (activate+deactivate), got %d", len(state.History))
	}
}

func TestEngine_AllActive(t *testing.T) {
	e := NewEngine(Config{Enabled: true}, nil)
	if _, err := e.Activate(nil, "youtube", "test"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	active := e.AllActive()
	if mode, ok := active["youtube"]; !ok || mode != string(APIGatedPrimary) {
		t.Errorf("expected youtube active in AllActive, got %+v", active)
	}
}
