package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/metrics"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

// ProberConfig configures the keepalive scheduler.
type ProberConfig struct {
	// Interval between probes of the same backend.
	Interval time.Duration
	// Timeout bounds a single probe.
	Timeout time.Duration
	// Stagger spaces the initial probes apart so a cold start does not
	// hit every backend at once.
	Stagger time.Duration
}

// TransitionFunc is invoked when a backend's liveness changes,
// including the first probe. It runs on the probe goroutine and must
// not block.
type TransitionFunc func(index int, address string, alive bool, result Result)

// Prober runs one probe loop per backend and keeps the registry's
// health view current. It never influences routing: an unhealthy
// backend stays eligible for hash-pinned traffic, the prober only
// records what it sees.
type Prober struct {
	registry *registry.Registry
	checker  Checker
	cfg      ProberConfig
	logger   *slog.Logger

	mu           sync.Mutex
	onTransition TransitionFunc
	known        []bool // whether a target has been probed yet
	lastAlive    []bool

	wg sync.WaitGroup
}

// NewProber creates a prober over every target in the registry.
func NewProber(reg *registry.Registry, checker Checker, cfg ProberConfig, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		registry:  reg,
		checker:   checker,
		cfg:       cfg,
		logger:    logger,
		known:     make([]bool, reg.Len()),
		lastAlive: make([]bool, reg.Len()),
	}
}

// OnTransition registers a callback for liveness transitions.
func (p *Prober) OnTransition(fn TransitionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTransition = fn
}

// Start launches the probe loops. They stop when ctx is canceled; Wait
// blocks until they have all returned.
func (p *Prober) Start(ctx context.Context) {
	p.logger.Info("health prober starting",
		"backends", p.registry.Len(),
		"interval", p.cfg.Interval,
		"stagger", p.cfg.Stagger,
	)

	for i := 0; i < p.registry.Len(); i++ {
		p.wg.Add(1)
		go p.probeLoop(ctx, i)
	}
}

// Wait blocks until every probe loop has stopped.
func (p *Prober) Wait() {
	p.wg.Wait()
}

func (p *Prober) probeLoop(ctx context.Context, index int) {
	defer p.wg.Done()

	// Staggered first probe.
	delay := time.Duration(index) * p.cfg.Stagger
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	p.probeOnce(ctx, index)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeOnce(ctx, index)
		}
	}
}

func (p *Prober) probeOnce(ctx context.Context, index int) {
	target := p.registry.Target(index)
	if target == nil {
		return
	}
	address := target.URL().String()

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	result := p.checker.Check(probeCtx, target.URL())

	metrics.ProbeDuration.WithLabelValues(address).Observe(result.Latency.Seconds())
	metrics.SetBackendUp(address, result.Healthy)

	if result.Healthy {
		metrics.ProbeResultsTotal.WithLabelValues(address, "success").Inc()
		p.registry.MarkAlive(index, result.Latency)
		p.logger.Debug("probe succeeded",
			"backend", address,
			"latency_ms", result.Latency.Milliseconds(),
		)
	} else {
		metrics.ProbeResultsTotal.WithLabelValues(address, "failure").Inc()
		p.registry.MarkDown(index)
		p.logger.Warn("probe failed",
			"backend", address,
			"error", result.Error,
		)
	}

	p.recordTransition(index, address, result)
}

func (p *Prober) recordTransition(index int, address string, result Result) {
	p.mu.Lock()
	changed := !p.known[index] || p.lastAlive[index] != result.Healthy
	p.known[index] = true
	p.lastAlive[index] = result.Healthy
	fn := p.onTransition
	p.mu.Unlock()

	if changed && fn != nil {
		fn(index, address, result.Healthy, result)
	}
}
