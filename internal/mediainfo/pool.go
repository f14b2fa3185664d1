// Package mediainfo isolates the blocking, synchronous external
// media-info extractor (an opaque tool that, given a video page URL,
// returns playable-stream URLs and metadata) behind a bounded worker pool,
// exactly spec.md §9's "Replacing the worker pool for sync extraction"
// design note: semaphore-limited goroutines invoking os/exec.
package mediainfo

import (
	"context"
	"os/exec"
	"time"

	"github.com/tributary-ai/videofed/internal/platformerr"
)

const DefaultDepth = 4

// Pool bounds concurrent extractor invocations. Exceeding the bound
// surfaces Unavailable immediately rather than queuing unboundedly, per
// spec.md §5's backpressure paragraph.
type Pool struct {
	sem    chan struct{}
	binary string
}

func NewPool(binary string, depth int) *Pool {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Pool{sem: make(chan struct{}, depth), binary: binary}
}

// Result is what a successful extraction yields: the raw stdout the
// caller's adapter is responsible for parsing into VideoDetails/StreamHandle.
type Result struct {
	Stdout []byte
}

// Extract runs the media-info binary against url with the given extra
// args (e.g. a Netscape cookie file path), bounded by the pool's depth and
// by ctx's deadline. Exceeding the pool's depth returns Unavailable without
// ever starting the process.
func (p *Pool) Extract(ctx context.Context, platform, url string, args ...string) (*Result, error) {
	select {
	case p.sem <- struct{}{}:
	default:
		perr := platformerr.New(platformerr.Unknown, platform, "media-info worker pool at capacity", nil)
		perr.Surface = platformerr.Unavailable
		return nil, perr
	}
	defer func() { <-p.sem }()

	cmdArgs := append(append([]string{}, args...), url)
	cmd := exec.CommandContext(ctx, p.binary, cmdArgs...)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, platformerr.New(platformerr.Timeout, platform, "media-info extraction timed out", err)
		}
		return nil, platformerr.New(platformerr.Unknown, platform, "media-info extraction failed", err)
	}
	return &Result{Stdout: out}, nil
}

// WithTimeout is a convenience for adapters that want a bounded extraction
// call without threading a context.WithTimeout call at every call site.
func (p *Pool) WithTimeout(ctx context.Context, d time.Duration, platform, url string, args ...string) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.Extract(callCtx, platform, url, args...)
}
