package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

// healthResponse is the aggregate registry view served at /health.
type healthResponse struct {
	Status    string            `json:"status"`
	Uptime    float64           `json:"uptime"`
	Backends  []registry.Status `json:"backends"`
	Timestamp time.Time         `json:"timestamp"`
}

// handleHealth reports every backend's last-known state. 200 when the
// whole fleet is alive, 207 when any backend is down — the router keeps
// serving either way, the status code is for monitors.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:    "ok",
		Uptime:    s.registry.Uptime().Seconds(),
		Backends:  s.registry.Snapshot(),
		Timestamp: time.Now(),
	}

	code := http.StatusOK
	if !s.registry.AllAlive() {
		resp.Status = "degraded"
		code = http.StatusMultiStatus
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(resp)
	}
}
