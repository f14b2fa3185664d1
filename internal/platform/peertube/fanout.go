package peertube

import (
	"context"
	"sort"
	"time"
)

const (
	interInstanceStagger = 50 * time.Millisecond
	perInstanceDeadline  = 15 * time.Second
	maxFanoutDeadline    = 45 * time.Second
)

type instanceResult struct {
	instance string
	videos   []videoResult
	err      error
}

// fanoutDeadline is min(maxFanoutDeadline, healthyCount*perInstanceDeadline),
// grounded verbatim on peertube.py's search_timeout calculation.
func fanoutDeadline(healthyCount int) time.Duration {
	d := time.Duration(healthyCount) * perInstanceDeadline
	if d > maxFanoutDeadline || d <= 0 {
		return maxFanoutDeadline
	}
	return d
}

// fanOut calls fetch once per instance, staggering launches by
// interInstanceStagger to avoid a thundering herd against instances that
// may already be degraded, and bounding the whole fan-out by
// fanoutDeadline(len(instances)). Partial failure is success: the caller
// decides what "all failed" means.
func fanOut(ctx context.Context, instances []string, fetch func(ctx context.Context, instance string) ([]videoResult, error)) []instanceResult {
	ctx, cancel := context.WithTimeout(ctx, fanoutDeadline(len(instances)))
	defer cancel()

	results := make([]instanceResult, len(instances))
	done := make(chan int, len(instances))

	for i, inst := range instances {
		i, inst := i, inst
		go func() {
			videos, err := fetch(ctx, inst)
			results[i] = instanceResult{instance: inst, videos: videos, err: err}
			done <- i
		}()
		if i < len(instances)-1 {
			select {
			case <-time.After(interInstanceStagger):
			case <-ctx.Done():
			}
		}
	}

	for range instances {
		select {
		case <-done:
		case <-ctx.Done():
			for i := range results {
				if results[i].instance == "" {
					results[i] = instanceResult{instance: instances[i], err: ctx.Err()}
				}
			}
			return results
		}
	}
	return results
}

// mergeSortTruncate flattens every instance's hits, sorts by Views
// descending (original_source sorts by views descending, then truncates to
// max), and truncates to max.
func mergeSortTruncate(results []instanceResult, max int) []videoResult {
	var all []videoResult
	for _, r := range results {
		if r.err == nil {
			all = append(all, r.videos...)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return views(all[i]) > views(all[j]) })
	if max > 0 && len(all) > max {
		all = all[:max]
	}
	return all
}

func views(v videoResult) int64 {
	if v.summary.Views == nil {
		return 0
	}
	return *v.summary.Views
}
