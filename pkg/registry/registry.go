// Package registry maintains the table of backend targets and their
// observed health. Index positions are stable for the life of the
// process; the position is the value encoded in sticky cookies, so the
// configured backend order must not change across a deploy without
// accepting that outstanding cookies are invalidated.
package registry

import (
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Target is one backend replica. The base URL is immutable; the health
// fields are written by the prober and the proxy error path concurrently
// with reads from the health endpoint, so they sit behind a mutex. The
// request counter is a plain atomic.
type Target struct {
	index int
	url   *url.URL

	mu        sync.RWMutex
	alive     bool
	latency   time.Duration
	hasProbe  bool
	lastProbe time.Time

	requests atomic.Int64
}

// Index returns the stable registry position of this target.
func (t *Target) Index() int { return t.index }

// URL returns the immutable upstream base URL.
func (t *Target) URL() *url.URL { return t.url }

// Alive reports the last-known liveness.
func (t *Target) Alive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// Requests returns the number of requests proxied to this target.
func (t *Target) Requests() int64 { return t.requests.Load() }

// Status is an immutable snapshot of one target, shaped for the health
// endpoint. LatencyMs and LastProbeAt are nil until the target has been
// probed; LatencyMs is also nil while the target is unreachable.
type Status struct {
	Index        int        `json:"index"`
	Address      string     `json:"address"`
	Alive        bool       `json:"alive"`
	LatencyMs    *int64     `json:"latencyMs"`
	LastProbeAt  *time.Time `json:"lastProbeAt"`
	RequestCount int64      `json:"requestCount"`
}

// Registry is the fixed-size table of backend targets, created once at
// startup. All mutation goes through the accessor methods.
type Registry struct {
	targets []*Target
	started time.Time
}

// New parses the ordered backend address list into a Registry.
func New(addresses []string) (*Registry, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("registry requires at least one backend")
	}

	targets := make([]*Target, len(addresses))
	for i, addr := range addresses {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid backend address %q: %w", addr, err)
		}
		targets[i] = &Target{index: i, url: u}
	}

	return &Registry{
		targets: targets,
		started: time.Now(),
	}, nil
}

// Len returns the number of configured backends.
func (r *Registry) Len() int { return len(r.targets) }

// Target returns the target at index i, or nil if out of range.
func (r *Registry) Target(i int) *Target {
	if i < 0 || i >= len(r.targets) {
		return nil
	}
	return r.targets[i]
}

// MarkAlive records a successful probe or proxied request round trip.
func (r *Registry) MarkAlive(i int, latency time.Duration) {
	t := r.Target(i)
	if t == nil {
		return
	}
	t.mu.Lock()
	t.alive = true
	t.latency = latency
	t.hasProbe = true
	t.lastProbe = time.Now()
	t.mu.Unlock()
}

// MarkDown records a failed probe or upstream connection failure. The
// latency reading is cleared: there is no meaningful round-trip time
// for an unreachable target.
func (r *Registry) MarkDown(i int) {
	t := r.Target(i)
	if t == nil {
		return
	}
	t.mu.Lock()
	t.alive = false
	t.latency = 0
	t.hasProbe = true
	t.lastProbe = time.Now()
	t.mu.Unlock()
}

// IncrementRequests bumps the proxied-request counter for target i.
func (r *Registry) IncrementRequests(i int) {
	if t := r.Target(i); t != nil {
		t.requests.Add(1)
	}
}

// AllAlive reports whether every target is currently alive.
func (r *Registry) AllAlive() bool {
	for _, t := range r.targets {
		if !t.Alive() {
			return false
		}
	}
	return true
}

// Uptime returns the time elapsed since the registry was created.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.started)
}

// Snapshot returns the current status of every target, in index order.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, len(r.targets))
	for i, t := range r.targets {
		t.mu.RLock()
		s := Status{
			Index:        i,
			Address:      t.url.String(),
			Alive:        t.alive,
			RequestCount: t.requests.Load(),
		}
		if t.hasProbe {
			probeAt := t.lastProbe
			s.LastProbeAt = &probeAt
			if t.alive {
				ms := t.latency.Milliseconds()
				s.LatencyMs = &ms
			}
		}
		t.mu.RUnlock()
		out[i] = s
	}
	return out
}
