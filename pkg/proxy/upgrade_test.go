package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

func TestServeUpgrade_BridgesWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	var upstreamSawHost string

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		upstreamSawHost = r.Host
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upstream upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Echo one message back.
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(mt, msg)
	}))
	defer backend.Close()

	reg, err := registry.New([]string{backend.URL})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pool := NewPool(reg, Options{Logger: discardLogger()})

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsUpgrade(r) {
			http.Error(w, "expected upgrade", http.StatusBadRequest)
			return
		}
		pool.Entry(0).ServeUpgrade(w, r)
	}))
	defer router.Close()

	wsURL := "ws" + strings.TrimPrefix(router.URL, "http") + "/socket.io/?eventId=abcdef0123456789abcdef01"
	client, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial through router failed: %v", err)
	}
	defer client.Close()
	defer resp.Body.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "ping" {
		t.Errorf("echo = %q, want ping", msg)
	}

	wantHost := backend.Listener.Addr().String()
	mu.Lock()
	defer mu.Unlock()
	if upstreamSawHost != wantHost {
		t.Errorf("upstream saw Host %q, want %q", upstreamSawHost, wantHost)
	}
	if got := reg.Target(0).Requests(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestServeUpgrade_UnreachableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	reg, _ := registry.New([]string{deadURL})
	reg.MarkAlive(0, 0)
	pool := NewPool(reg, Options{Logger: discardLogger()})

	req := httptest.NewRequest("GET", "/socket.io/", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	rec := httptest.NewRecorder()

	pool.Entry(0).ServeUpgrade(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if reg.Target(0).Alive() {
		t.Error("target should be marked down after failed upgrade dial")
	}
}
