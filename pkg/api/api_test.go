package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/journal"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, jnl *journal.Journal, networks ...string) (*Server, *registry.Registry) {
	t.Helper()

	if len(networks) == 0 {
		networks = []string{"127.0.0.1/32"}
	}

	reg, err := registry.New([]string{"http://a:3000", "http://b:3000"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	s, err := NewServer(ServerConfig{
		Address:         "127.0.0.1:0",
		AllowedNetworks: networks,
		Logger:          discardLogger(),
	}, reg, jnl)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return s, reg
}

func get(t *testing.T, s *Server, path, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s, reg := newTestServer(t, nil)

	rec := get(t, s, "/api/v1/status", "127.0.0.1:40000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded before probes", body.Status)
	}
	if body.Backends != 2 {
		t.Errorf("backends = %d, want 2", body.Backends)
	}

	reg.MarkAlive(0, time.Millisecond)
	reg.MarkAlive(1, time.Millisecond)
	rec = get(t, s, "/api/v1/status", "127.0.0.1:40000")
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Alive != 2 {
		t.Errorf("status = %q alive = %d, want ok/2", body.Status, body.Alive)
	}
}

func TestBackendsEndpoint(t *testing.T) {
	s, reg := newTestServer(t, nil)
	reg.IncrementRequests(1)

	rec := get(t, s, "/api/v1/backends", "127.0.0.1:40000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Backends []registry.Status `json:"backends"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Backends) != 2 {
		t.Fatalf("backends = %d", len(body.Backends))
	}
	if body.Backends[1].RequestCount != 1 {
		t.Errorf("backend 1 request count = %d, want 1", body.Backends[1].RequestCount)
	}
}

func TestIncidentsEndpoint(t *testing.T) {
	t.Run("journal disabled", func(t *testing.T) {
		s, _ := newTestServer(t, nil)
		rec := get(t, s, "/api/v1/incidents", "127.0.0.1:40000")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 when journal disabled", rec.Code)
		}
	})

	t.Run("returns recorded incidents", func(t *testing.T) {
		jnl, err := journal.Open(filepath.Join(t.TempDir(), "incidents.db"))
		if err != nil {
			t.Fatalf("journal: %v", err)
		}
		defer jnl.Close()

		if err := jnl.Record(journal.Incident{Index: 0, Address: "http://a:3000", Alive: false, Error: "refused"}); err != nil {
			t.Fatalf("record: %v", err)
		}

		s, _ := newTestServer(t, jnl)
		rec := get(t, s, "/api/v1/incidents?limit=5", "127.0.0.1:40000")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var body struct {
			Incidents []journal.Incident `json:"incidents"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Incidents) != 1 || body.Incidents[0].Error != "refused" {
			t.Errorf("incidents = %+v", body.Incidents)
		}
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		jnl, err := journal.Open(filepath.Join(t.TempDir(), "incidents.db"))
		if err != nil {
			t.Fatalf("journal: %v", err)
		}
		defer jnl.Close()

		s, _ := newTestServer(t, jnl)
		rec := get(t, s, "/api/v1/incidents?limit=nope", "127.0.0.1:40000")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestACL(t *testing.T) {
	t.Run("denies outside networks", func(t *testing.T) {
		s, _ := newTestServer(t, nil)

		rec := get(t, s, "/api/v1/status", "203.0.113.5:40000")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("allows configured network", func(t *testing.T) {
		s, _ := newTestServer(t, nil, "203.0.113.0/24")

		rec := get(t, s, "/api/v1/status", "203.0.113.5:40000")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("bare IP allowlist entry", func(t *testing.T) {
		s, _ := newTestServer(t, nil, "203.0.113.5")

		if rec := get(t, s, "/api/v1/status", "203.0.113.5:40000"); rec.Code != http.StatusOK {
			t.Errorf("allowed IP got %d", rec.Code)
		}
		if rec := get(t, s, "/api/v1/status", "203.0.113.6:40000"); rec.Code != http.StatusForbidden {
			t.Errorf("other IP got %d, want 403", rec.Code)
		}
	})

	t.Run("rejects invalid ACL at construction", func(t *testing.T) {
		reg, _ := registry.New([]string{"http://a:3000"})
		_, err := NewServer(ServerConfig{
			Address:         "127.0.0.1:0",
			AllowedNetworks: []string{"not-a-network"},
			Logger:          discardLogger(),
		}, reg, nil)
		if err == nil {
			t.Error("expected error for invalid ACL network")
		}
	})

	t.Run("trusts forwarded header only when configured", func(t *testing.T) {
		reg, _ := registry.New([]string{"http://a:3000"})
		s, err := NewServer(ServerConfig{
			Address:           "127.0.0.1:0",
			AllowedNetworks:   []string{"203.0.113.0/24"},
			TrustProxyHeaders: true,
			Logger:            discardLogger(),
		}, reg, nil)
		if err != nil {
			t.Fatalf("server: %v", err)
		}

		req := httptest.NewRequest("GET", "/api/v1/status", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", "203.0.113.5")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 via trusted header", rec.Code)
		}
	})
}
