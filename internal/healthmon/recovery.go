package healthmon

import (
	"context"
	"sync"
	"time"

	"github.com/tributary-ai/videofed/internal/obs"
	"github.com/tributary-ai/videofed/internal/resilience"
)

// recoveryScheduler runs one capped-exponential-backoff retry loop per
// service once it crosses the unhealthy threshold, reusing
// resilience.Policy's delay formula rather than a bespoke backoff
// implementation.
type recoveryScheduler struct {
	mu      sync.Mutex
	active  map[string]context.CancelFunc
	logger  *obs.Logger
}

func newRecoveryScheduler(logger *obs.Logger) *recoveryScheduler {
	return &recoveryScheduler{active: make(map[string]context.CancelFunc), logger: logger}
}

// schedule starts (or is a no-op if already running) a recovery loop for
// name: probe is retried with resilience's default backoff policy until it
// succeeds or the scheduler is stopped.
func (r *recoveryScheduler) schedule(name string, probe func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.active[name]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.active[name] = cancel

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.active, name)
			r.mu.Unlock()
		}()

		policy := resilience.DefaultPolicy()
		for attempt := 0; ; attempt++ {
			if ctx.Err() != nil {
				return
			}
			callCtx, callCancel := context.WithTimeout(ctx, 30*time.Second)
			err := probe(callCtx)
			callCancel()
			if err == nil {
				if r.logger != nil {
					r.logger.With("service", name).Info("healthmon: recovery probe succeeded")
				}
				return
			}
			delay := policy.Delay(attempt)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

func (r *recoveryScheduler) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.active {
		cancel()
	}
	r.active = make(map[string]context.CancelFunc)
}
