package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aaks-hatH/planit-sub000/pkg/proxy"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
	"github.com/Aaks-hatH/planit-sub000/pkg/routing"
	"github.com/Aaks-hatH/planit-sub000/pkg/sticky"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires a router over the given upstream URLs.
func newTestRouter(t *testing.T, limiter *RateLimiter, upstreams ...string) (*Server, *registry.Registry) {
	t.Helper()

	reg, err := registry.New(upstreams)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pool := proxy.NewPool(reg, proxy.Options{Logger: discardLogger()})
	resolver := routing.NewResolver(reg.Len(), "planit_route")
	mgr := sticky.NewManager("planit_route", 24*time.Hour, false)

	s := New(Config{Address: ":0", Logger: discardLogger(), Limiter: limiter}, reg, resolver, pool, mgr)
	return s, reg
}

// markedBackends starts n upstreams that each record hits under their
// index and returns their URLs plus the hit recorder.
func markedBackends(t *testing.T, n int) ([]string, func() map[int]int) {
	t.Helper()

	var mu sync.Mutex
	hits := make(map[int]int)
	urls := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[i]++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)
		urls[i] = srv.URL
	}
	return urls, func() map[int]int {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[int]int, len(hits))
		for k, v := range hits {
			out[k] = v
		}
		return out
	}
}

func TestHealthEndpoint(t *testing.T) {
	urls, _ := markedBackends(t, 2)
	s, reg := newTestRouter(t, nil, urls...)

	t.Run("degraded before probes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		if rec.Code != http.StatusMultiStatus {
			t.Errorf("status = %d, want 207 while backends unprobed", rec.Code)
		}
	})

	t.Run("ok when fleet alive", func(t *testing.T) {
		reg.MarkAlive(0, 12*time.Millisecond)
		reg.MarkAlive(1, 15*time.Millisecond)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var body struct {
			Status    string `json:"status"`
			Uptime    float64
			Backends  []registry.Status `json:"backends"`
			Timestamp time.Time         `json:"timestamp"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("health body not JSON: %v", err)
		}
		if body.Status != "ok" {
			t.Errorf("status = %q, want ok", body.Status)
		}
		if len(body.Backends) != 2 {
			t.Errorf("backends = %d, want 2", len(body.Backends))
		}
		if body.Backends[0].LatencyMs == nil || *body.Backends[0].LatencyMs != 12 {
			t.Errorf("backend 0 latency = %v, want 12", body.Backends[0].LatencyMs)
		}
		if body.Timestamp.IsZero() {
			t.Error("timestamp missing")
		}
	})

	t.Run("degraded when one backend down", func(t *testing.T) {
		reg.MarkDown(1)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		if rec.Code != http.StatusMultiStatus {
			t.Errorf("status = %d, want 207", rec.Code)
		}
	})
}

func TestRouting_ResourceAffinity(t *testing.T) {
	const id = "abcdef0123456789abcdef01"
	urls, hits := markedBackends(t, 3)
	s, _ := newTestRouter(t, nil, urls...)

	want := routing.Index(id, 3)

	// Same event from different clients, with and without cookies.
	requests := []*http.Request{
		httptest.NewRequest("GET", "/api/events/"+id+"/chat", nil),
		httptest.NewRequest("POST", "/api/events/"+id+"/rsvp", nil),
		httptest.NewRequest("GET", "/api/events/"+id+"/chat", nil),
	}
	requests[0].RemoteAddr = "203.0.113.5:1000"
	requests[1].RemoteAddr = "198.51.100.7:2000"
	requests[2].RemoteAddr = "192.0.2.9:3000"
	requests[2].Header.Set("Cookie", "planit_route="+strconv.Itoa((want+1)%3))

	for _, req := range requests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}

	if hits()[want] != 3 {
		t.Errorf("backend %d hits = %v, want all 3", want, hits())
	}
}

func TestRouting_CookieAndIPFallback(t *testing.T) {
	urls, hits := markedBackends(t, 3)
	s, _ := newTestRouter(t, nil, urls...)

	// No ID, no cookie: IP hash.
	ipIdx := routing.Index("203.0.113.5", 3)
	req := httptest.NewRequest("GET", "/api/session", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if hits()[ipIdx] != 1 {
		t.Fatalf("IP fallback did not route to %d: %v", ipIdx, hits())
	}

	// The response must carry a sticky cookie for that index.
	var stamped *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "planit_route" {
			stamped = c
		}
	}
	if stamped == nil {
		t.Fatal("response missing sticky cookie")
	}
	if !stamped.HttpOnly {
		t.Error("sticky cookie should be HttpOnly")
	}

	// A valid cookie overrides the IP hash.
	cookieIdx := (ipIdx + 1) % 3
	req = httptest.NewRequest("GET", "/api/session", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	req.AddCookie(&http.Cookie{Name: "planit_route", Value: strconv.Itoa(cookieIdx)})
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	if hits()[cookieIdx] != 1 {
		t.Errorf("cookie did not override IP hash: %v", hits())
	}
}

func TestRouting_NoFailoverForUnhealthyTarget(t *testing.T) {
	// A hash-pinned backend stays pinned even when the prober knows it
	// is down; the router does not reroute around it.
	const id = "abcdef0123456789abcdef01"
	urls, hits := markedBackends(t, 3)
	s, reg := newTestRouter(t, nil, urls...)

	want := routing.Index(id, 3)
	reg.MarkDown(want)

	req := httptest.NewRequest("GET", "/api/events/"+id+"/chat", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if hits()[want] != 1 {
		t.Errorf("request was rerouted away from the pinned backend: %v", hits())
	}
}

func TestRateLimiter_HealthExempt(t *testing.T) {
	urls, _ := markedBackends(t, 1)
	s, _ := newTestRouter(t, NewRateLimiter(1, 1), urls...)

	// Exhaust the budget.
	req := httptest.NewRequest("GET", "/api/session", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/session", nil)
	req.RemoteAddr = "203.0.113.5:1000"
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}

	// /health keeps answering regardless.
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		hreq := httptest.NewRequest("GET", "/health", nil)
		hreq.RemoteAddr = "203.0.113.5:1000"
		s.Handler().ServeHTTP(rec, hreq)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatal("health endpoint must be exempt from rate limiting")
		}
	}
}

func TestUpgradeAndHTTPConsistency(t *testing.T) {
	// A plain request and an upgrade handshake naming the same event
	// must land on the same backend.
	const id = "abcdef0123456789abcdef01"

	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	hits := make(map[int]int)
	urls := make([]string, 3)
	for i := 0; i < 3; i++ {
		i := i
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[i]++
			mu.Unlock()
			if proxy.IsUpgrade(r) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err == nil {
					conn.Close()
				}
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)
		urls[i] = srv.URL
	}

	s, _ := newTestRouter(t, nil, urls...)
	front := httptest.NewServer(s.Handler())
	defer front.Close()

	// Plain HTTP request.
	resp, err := http.Get(front.URL + "/api/events/" + id + "/chat")
	if err != nil {
		t.Fatalf("http request: %v", err)
	}
	resp.Body.Close()

	// WebSocket upgrade naming the same event in the query string.
	wsURL := "ws" + strings.TrimPrefix(front.URL, "http") + "/socket.io/?eventId=" + id
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	conn.Close()
	wsResp.Body.Close()

	want := routing.Index(id, 3)
	mu.Lock()
	defer mu.Unlock()
	if hits[want] != 2 {
		t.Errorf("expected both entry points to hit backend %d, got %v", want, hits)
	}
}
