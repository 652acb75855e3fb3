package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/api"
	"github.com/Aaks-hatH/planit-sub000/pkg/config"
	"github.com/Aaks-hatH/planit-sub000/pkg/health"
	"github.com/Aaks-hatH/planit-sub000/pkg/journal"
	"github.com/Aaks-hatH/planit-sub000/pkg/metrics"
	"github.com/Aaks-hatH/planit-sub000/pkg/proxy"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
	"github.com/Aaks-hatH/planit-sub000/pkg/routing"
	"github.com/Aaks-hatH/planit-sub000/pkg/server"
	"github.com/Aaks-hatH/planit-sub000/pkg/sticky"
	"github.com/Aaks-hatH/planit-sub000/pkg/version"
)

// Application manages the lifecycle of all router components.
type Application struct {
	config        *config.Config
	registry      *registry.Registry
	resolver      *routing.Resolver
	pool          *proxy.Pool
	sticky        *sticky.Manager
	prober        *health.Prober
	journal       *journal.Journal
	routerServer  *server.Server
	metricsServer *metrics.Server
	apiServer     *api.Server
	logger        *slog.Logger
}

// NewApplication creates a new Application instance with pre-loaded configuration.
func NewApplication(cfg *config.Config, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{
		config: cfg,
		logger: logger,
	}
}

// Initialize sets up all components using the loaded configuration.
func (a *Application) Initialize() error {
	a.logger.Info("initializing application", "backends", len(a.config.Backends))

	metrics.SetAppInfo(version.Version)
	metrics.ConfiguredBackends.Set(float64(len(a.config.Backends)))

	if err := a.initializeRegistry(); err != nil {
		return fmt.Errorf("failed to initialize backend registry: %w", err)
	}

	a.initializeRouting()

	if err := a.initializeJournal(); err != nil {
		return fmt.Errorf("failed to initialize incident journal: %w", err)
	}

	a.initializeProber()
	a.initializeRouterServer()
	a.initializeMetricsServer()

	if err := a.initializeAPIServer(); err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	return nil
}

// initializeRegistry builds the ordered backend registry. Registry order
// is routing order: it must match the configuration exactly.
func (a *Application) initializeRegistry() error {
	reg, err := registry.New(a.config.Backends)
	if err != nil {
		return err
	}
	a.registry = reg

	for i := 0; i < reg.Len(); i++ {
		target := reg.Target(i)
		a.logger.Info("backend registered", "index", i, "address", target.URL().String())
	}
	return nil
}

// initializeRouting wires the routing resolver, the sticky cookie
// manager, and the per-backend proxy pool.
func (a *Application) initializeRouting() {
	a.resolver = routing.NewResolver(a.registry.Len(), a.config.Sticky.CookieName)
	a.sticky = sticky.NewManager(a.config.Sticky.CookieName, a.config.Sticky.MaxAge, a.config.StickySecure())
	a.pool = proxy.NewPool(a.registry, proxy.Options{
		RequestTimeout: a.config.Proxy.RequestTimeout,
		DialTimeout:    a.config.Proxy.DialTimeout,
		IdleConns:      a.config.Proxy.IdleConns,
		Logger:         a.logger.With("component", "proxy"),
	})

	a.logger.Info("routing initialized",
		"cookie", a.config.Sticky.CookieName,
		"cookie_max_age", a.config.Sticky.MaxAge,
		"request_timeout", a.config.Proxy.RequestTimeout,
	)
}

// initializeJournal opens the health-incident journal when configured.
func (a *Application) initializeJournal() error {
	if a.config.Journal.Path == "" {
		a.logger.Info("incident journal disabled")
		return nil
	}

	jnl, err := journal.Open(a.config.Journal.Path)
	if err != nil {
		return err
	}
	a.journal = jnl

	a.logger.Info("incident journal opened", "path", a.config.Journal.Path)
	return nil
}

// initializeProber creates the keepalive prober and wires health
// transitions into the journal.
func (a *Application) initializeProber() {
	checker := health.NewHTTPChecker(a.config.Health.Path)

	a.prober = health.NewProber(a.registry, checker, health.ProberConfig{
		Interval: a.config.Health.Interval,
		Timeout:  a.config.Health.Timeout,
		Stagger:  a.config.Health.Stagger,
	}, a.logger.With("component", "prober"))

	a.prober.OnTransition(func(index int, address string, alive bool, result health.Result) {
		if alive {
			a.logger.Info("backend recovered", "index", index, "address", address)
		} else {
			a.logger.Warn("backend down", "index", index, "address", address, "error", result.Error)
		}

		if a.journal == nil {
			return
		}
		inc := journal.Incident{
			Index:   index,
			Address: address,
			Alive:   alive,
			At:      result.Timestamp,
		}
		if result.Error != nil {
			inc.Error = result.Error.Error()
		}
		if err := a.journal.Record(inc); err != nil {
			a.logger.Error("failed to record incident", "error", err)
		}
	})

	a.logger.Info("keepalive prober initialized",
		"path", a.config.Health.Path,
		"interval", a.config.Health.Interval,
		"timeout", a.config.Health.Timeout,
	)
}

// initializeRouterServer creates the public listener.
func (a *Application) initializeRouterServer() {
	var limiter *server.RateLimiter
	if a.config.RateLimit.Enabled {
		limiter = server.NewRateLimiter(a.config.RateLimit.RPS, a.config.RateLimit.Burst)
		a.logger.Info("rate limiting enabled",
			"rps", a.config.RateLimit.RPS,
			"burst", a.config.RateLimit.Burst,
		)
	}

	a.routerServer = server.New(server.Config{
		Address: a.config.Listen.Address,
		Logger:  a.logger.With("component", "router"),
		Limiter: limiter,
	}, a.registry, a.resolver, a.pool, a.sticky)

	a.logger.Info("router server initialized", "address", a.config.Listen.Address)
}

// initializeMetricsServer creates and configures the metrics server.
func (a *Application) initializeMetricsServer() {
	if !a.config.Metrics.Enabled {
		a.logger.Info("metrics server disabled")
		return
	}

	a.metricsServer = metrics.NewServer(metrics.ServerConfig{
		Address: a.config.Metrics.Address,
		Logger:  a.logger,
	})

	a.logger.Info("metrics server initialized", "address", a.config.Metrics.Address)
}

// initializeAPIServer creates and configures the admin API server.
func (a *Application) initializeAPIServer() error {
	if !a.config.API.Enabled {
		a.logger.Info("API server disabled")
		return nil
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Address:           a.config.API.Address,
		AllowedNetworks:   a.config.API.AllowedNetworks,
		TrustProxyHeaders: a.config.API.TrustProxyHeaders,
		Logger:            a.logger,
	}, a.registry, a.journal)
	if err != nil {
		return err
	}
	a.apiServer = apiServer

	a.logger.Info("API server initialized",
		"address", a.config.API.Address,
		"allowed_networks", a.config.API.AllowedNetworks,
	)
	return nil
}

// Run starts all components and blocks until the context is canceled or
// the public listener fails. Auxiliary servers run alongside the main
// listener; the prober keeps running for the whole lifetime so free-tier
// backends are never allowed to idle back to sleep.
func (a *Application) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.prober.Start(runCtx)
	a.logger.Info("keepalive prober started")

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(runCtx); err != nil {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if a.apiServer != nil {
		go func() {
			if err := a.apiServer.Start(runCtx); err != nil {
				a.logger.Error("API server error", "error", err)
			}
		}()
	}

	err := a.routerServer.Start(runCtx)

	// Unblock the prober loops and give the auxiliary servers a moment
	// to finish their own shutdown before closing shared resources.
	cancel()
	a.prober.Wait()
	time.Sleep(100 * time.Millisecond)

	if a.journal != nil {
		if cerr := a.journal.Close(); cerr != nil {
			a.logger.Error("error closing incident journal", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}

	return err
}
