package peertube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tributary-ai/videofed/internal/videotypes"
)

func viewsOf(n int64) *int64 { return &n }

func TestFanoutDeadline(t *testing.T) {
	tests := []struct {
		healthyCount int
		want         time.Duration
	}{
		{0, maxFanoutDeadline},
		{1, perInstanceDeadline},
		{2, 2 * perInstanceDeadline},
		{10, maxFanoutDeadline}, // would exceed the cap, clamps down
	}
	for _, tt := range tests {
		if got := fanoutDeadline(tt.healthyCount); got != tt.want {
			t.Errorf("fanoutDeadline(%d) = %v, want %v", tt.healthyCount, got, tt.want)
		}
	}
}

func TestFanOut_CollectsAllInstanceResults(t *testing.T) {
	instances := []string{"a.example", "b.example", "c.example"}
	fetch := func(ctx context.Context, instance string) ([]videoResult, error) {
		if instance == "b.example" {
			return nil, errors.New("instance unreachable")
		}
		return []videoResult{{summary: videotypes.VideoSummary{ID: instance}}}, nil
	}

	results := fanOut(context.Background(), instances, fetch)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var failed, succeeded int
	for _, r := range results {
		if r.err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("expected 1 failure and 2 successes, got failed=%d succeeded=%d", failed, succeeded)
	}
}

func TestMergeSortTruncate_SortsByViewsDescending(t *testing.T) {
	results := []instanceResult{
		{instance: "a", videos: []videoResult{
			{summary: videotypes.VideoSummary{ID: "low", Views: viewsOf(10)}},
			{summary: videotypes.VideoSummary{ID: "high", Views: viewsOf(1000)}},
		}},
		{instance: "b", err: errors.New("down"), videos: []videoResult{
			{summary: videotypes.VideoSummary{ID: "excluded", Views: viewsOf(9999)}},
		}},
	}

	merged := mergeSortTruncate(results, 10)
	if len(merged) != 2 {
		t.Fatalf("expected failed instance's videos excluded, got %d results", len(merged))
	}
	if merged[0].summary.ID != "high" {
		t.Errorf("expected highest-view video first, got %s", merged[0].summary.ID)
	}
}

func TestMergeSortTruncate_RespectsMax(t *testing.T) {
	results := []instanceResult{
		{instance: "a", videos: []videoResult{
			{summary: videotypes.VideoSummary{ID: "1", Views: viewsOf(3)}},
			{summary: videotypes.VideoSummary{ID: "2", Views: viewsOf(2)}},
			{summary: videotypes.VideoSummary{ID: "3", Views: viewsOf(1)}},
		}},
	}
	merged := mergeSortTruncate(results, 2)
	if len(merged) != 2 {
		t.Errorf("expected truncation to max=2, got %d", len(merged))
	}
}
