package transcode

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Prober resolves the external binaries the pipeline shells out to.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// PathProber checks that each named binary resolves through exec.LookPath.
type PathProber struct {
	tools map[string]string // display name -> binary
}

// NewPathProber probes the given name -> binary pairs.
func NewPathProber(tools map[string]string) *PathProber {
	return &PathProber{tools: tools}
}

func (p *PathProber) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{Tools: make(map[string]ToolInfo, len(p.tools)), ProbedAt: time.Now()}
	for name, bin := range p.tools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := exec.LookPath(bin)
		if err != nil {
			caps.Tools[name] = ToolInfo{Available: false, Error: err.Error()}
			continue
		}
		caps.Tools[name] = ToolInfo{Available: true, Path: path}
	}
	return caps, nil
}

// CachedProbe caches probe results with a TTL so /health does not hit the
// filesystem on every call.
type CachedProbe struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedProbe(prober Prober, logger *slog.Logger) *CachedProbe {
	return &CachedProbe{prober: prober, ttl: defaultProbeTTL, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (c *CachedProbe) Get(ctx context.Context) (*Capabilities, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		caps := c.cached
		c.mu.RUnlock()
		return caps, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (c *CachedProbe) Refresh(ctx context.Context) (*Capabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps, err := c.prober.Probe(ctx)
	if err != nil {
		c.logger.Warn("tool probe failed", "error", err)
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, err
	}

	for name, t := range caps.Tools {
		if !t.Available {
			c.logger.Warn("external tool unavailable", "tool", name, "error", t.Error)
		}
	}

	c.cached = caps
	return caps, nil
}
