// Package server is the public entry point of the router: it resolves
// every inbound request to a backend index and hands it to that
// backend's proxy entry, stamping the affinity cookie on the way out.
// WebSocket handshakes take a parallel path through the same resolver.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/metrics"
	"github.com/Aaks-hatH/planit-sub000/pkg/proxy"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
	"github.com/Aaks-hatH/planit-sub000/pkg/routing"
	"github.com/Aaks-hatH/planit-sub000/pkg/sticky"
)

// healthPath is the router's own liveness endpoint. It is answered
// locally, never proxied, and is exempt from rate limiting so uptime
// monitors can poll it continuously.
const healthPath = "/health"

// Config holds the public listener configuration.
type Config struct {
	Address string
	Logger  *slog.Logger
	// Limiter is optional; nil disables rate limiting.
	Limiter *RateLimiter
}

// Server is the public-facing router listener.
type Server struct {
	server   *http.Server
	registry *registry.Registry
	resolver *routing.Resolver
	pool     *proxy.Pool
	sticky   *sticky.Manager
	limiter  *RateLimiter
	logger   *slog.Logger
}

// New wires the routing components into a listener.
func New(cfg Config, reg *registry.Registry, resolver *routing.Resolver, pool *proxy.Pool, stickyMgr *sticky.Manager) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: reg,
		resolver: resolver,
		pool:     pool,
		sticky:   stickyMgr,
		limiter:  cfg.Limiter,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: http.HandlerFunc(s.handle),
		// No WriteTimeout: long-polling and websocket bridges outlive
		// any sane fixed value; upstream timeouts bound each proxied
		// request instead.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == healthPath {
		s.handleHealth(w, r)
		return
	}

	if s.limiter != nil {
		key := routing.ClientKey(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
		if !s.limiter.Allow(key) {
			metrics.RateLimitedTotal.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	if proxy.IsUpgrade(r) {
		s.handleUpgrade(w, r)
		return
	}

	decision := s.resolver.ResolveRequest(r)
	entry := s.pool.Entry(decision.Index)

	metrics.RecordDecision(strconv.Itoa(decision.Index), string(decision.Reason))
	s.logger.Debug("routing decision",
		"index", decision.Index,
		"reason", decision.Reason,
		"path", r.URL.Path,
	)

	// Stamped before proxying so the Set-Cookie rides out with whatever
	// the upstream answers; re-stamping every response slides the
	// affinity window forward.
	s.sticky.Stamp(w, decision.Index)
	entry.ServeHTTP(w, r)
}

// handleUpgrade replays the routing decision for websocket handshakes.
// These bypass the normal middleware pipeline, so the resolver is fed
// the raw header strings directly; it is the same pure resolver the
// HTTP path uses, which is what keeps the two entry points consistent.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	decision := s.resolver.Resolve(
		r.URL.RequestURI(),
		r.Header.Get("Cookie"),
		r.Header.Get("X-Forwarded-For"),
		r.RemoteAddr,
	)
	metrics.RecordDecision(strconv.Itoa(decision.Index), string(decision.Reason))
	s.logger.Debug("upgrade routing decision",
		"index", decision.Index,
		"reason", decision.Reason,
		"path", r.URL.Path,
	)

	s.pool.Entry(decision.Index).ServeUpgrade(w, r)
}

// Start begins serving. It blocks until the context is canceled, then
// drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("router listening", "address", s.server.Addr, "backends", s.registry.Len())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("router server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	s.logger.Info("router shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("router shutdown error: %w", err)
	}
	return nil
}
