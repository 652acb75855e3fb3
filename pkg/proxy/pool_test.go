package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeHTTP_ForwardsAndRewritesHost(t *testing.T) {
	var mu sync.Mutex
	var gotHost, gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHost = r.Host
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		mu.Unlock()
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	reg, err := registry.New([]string{upstream.URL})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pool := NewPool(reg, Options{Logger: discardLogger()})

	req := httptest.NewRequest("GET", "/api/events/abcdef0123456789abcdef01/chat?page=2", nil)
	rec := httptest.NewRecorder()
	pool.Entry(0).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream response headers not passed through")
	}
	wantHost := upstream.Listener.Addr().String()
	mu.Lock()
	defer mu.Unlock()
	if gotHost != wantHost {
		t.Errorf("upstream saw Host %q, want %q", gotHost, wantHost)
	}
	if gotPath != "/api/events/abcdef0123456789abcdef01/chat" {
		t.Errorf("upstream saw path %q", gotPath)
	}
	if gotQuery != "page=2" {
		t.Errorf("query string not forwarded, got %q", gotQuery)
	}
	if got := reg.Target(0).Requests(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestServeHTTP_UnreachableUpstream(t *testing.T) {
	// A listener that is closed immediately: connection refused.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	reg, err := registry.New([]string{deadURL})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg.MarkAlive(0, time.Millisecond)

	pool := NewPool(reg, Options{Logger: discardLogger()})

	req := httptest.NewRequest("GET", "/api/session", nil)
	rec := httptest.NewRecorder()
	pool.Entry(0).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	if body.Error != "backend_unavailable" {
		t.Errorf("error = %q, want backend_unavailable", body.Error)
	}
	if body.Message == "" {
		t.Error("expected a human-readable retry message")
	}

	// The failure must flag the target without waiting for a probe.
	if reg.Target(0).Alive() {
		t.Error("target should be marked down after connection failure")
	}
}

func TestPool_EntryBounds(t *testing.T) {
	reg, _ := registry.New([]string{"http://a:3000", "http://b:3000"})
	pool := NewPool(reg, Options{Logger: discardLogger()})

	if pool.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pool.Len())
	}
	if pool.Entry(-1) != nil || pool.Entry(2) != nil {
		t.Error("out-of-range Entry should return nil")
	}
	if pool.Entry(1).Index() != 1 {
		t.Errorf("Entry(1).Index() = %d", pool.Entry(1).Index())
	}
}

func TestPool_DedicatedTransports(t *testing.T) {
	reg, _ := registry.New([]string{"http://a:3000", "http://b:3000"})
	pool := NewPool(reg, Options{Logger: discardLogger()})

	if pool.Entry(0).Target().Host == pool.Entry(1).Target().Host {
		t.Fatal("entries should be bound to distinct upstreams")
	}
	if pool.Entry(0).reverse.Transport == pool.Entry(1).reverse.Transport {
		t.Error("each entry must own its transport and connection pool")
	}
}

func TestIsUpgrade(t *testing.T) {
	tests := []struct {
		name       string
		upgrade    string
		connection string
		want       bool
	}{
		{name: "websocket upgrade", upgrade: "websocket", connection: "Upgrade", want: true},
		{name: "case insensitive", upgrade: "WebSocket", connection: "keep-alive, Upgrade", want: true},
		{name: "plain request", want: false},
		{name: "upgrade header without connection token", upgrade: "websocket", connection: "keep-alive", want: false},
		{name: "h2c upgrade ignored", upgrade: "h2c", connection: "Upgrade", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/socket.io/", nil)
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
			}
			if tt.connection != "" {
				req.Header.Set("Connection", tt.connection)
			}
			if got := IsUpgrade(req); got != tt.want {
				t.Errorf("IsUpgrade() = %v, want %v", got, tt.want)
			}
		})
	}
}
