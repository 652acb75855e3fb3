// Package api exposes the operator-facing admin API: registry status,
// per-backend detail, and the health-incident journal. It binds to a
// private address and sits behind a network ACL; it is not reachable
// through the public proxy listener.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Aaks-hatH/planit-sub000/pkg/journal"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
	"github.com/Aaks-hatH/planit-sub000/pkg/version"
)

// ServerConfig holds admin API server configuration.
type ServerConfig struct {
	Address           string
	AllowedNetworks   []string
	TrustProxyHeaders bool
	Logger            *slog.Logger
}

// Server provides the admin HTTP API.
type Server struct {
	server   *http.Server
	registry *registry.Registry
	journal  *journal.Journal // nil when the journal is disabled
	logger   *slog.Logger
}

// NewServer creates the admin API server.
func NewServer(cfg ServerConfig, reg *registry.Registry, jnl *journal.Journal) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: reg,
		journal:  jnl,
		logger:   logger,
	}

	acl, err := NewACLMiddleware(cfg.AllowedNetworks, cfg.TrustProxyHeaders, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid admin API ACL: %w", err)
	}

	r := chi.NewRouter()
	r.Use(acl.Wrap)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/backends", s.handleBackends)
		r.Get("/incidents", s.handleIncidents)
	})

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type statusResponse struct {
	Status   string  `json:"status"`
	Version  string  `json:"version"`
	Uptime   float64 `json:"uptime"`
	Backends int     `json:"backends"`
	Alive    int     `json:"alive"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	alive := 0
	for _, b := range snap {
		if b.Alive {
			alive++
		}
	}

	resp := statusResponse{
		Status:   "ok",
		Version:  version.Version,
		Uptime:   s.registry.Uptime().Seconds(),
		Backends: len(snap),
		Alive:    alive,
	}
	if alive < len(snap) {
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backends": s.registry.Snapshot(),
	})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "incident journal is not enabled",
		})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer in [1, 1000]",
			})
			return
		}
		limit = n
	}

	incidents, err := s.journal.Recent(limit)
	if err != nil {
		s.logger.Error("failed to read incident journal", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read incident journal",
		})
		return
	}
	if incidents == nil {
		incidents = []journal.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start starts the admin API server. It blocks until the context is
// canceled.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("admin API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin API server error: %w", err)
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
	s.logger.Info("admin API server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin API shutdown error: %w", err)
	}
	return nil
}
