// Package sticky issues and reads the affinity cookie that pins a
// client to a previously chosen backend. Parsing is deliberately
// forgiving: a corrupt or out-of-range cookie is treated as absent,
// never as an error.
package sticky

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Manager stamps the affinity cookie onto responses and reads it back
// from requests.
type Manager struct {
	name   string
	maxAge time.Duration
	secure bool
}

// NewManager creates a cookie manager. maxAge should outlive the
// longest realistic collaborative session (24h by default upstream).
func NewManager(name string, maxAge time.Duration, secure bool) *Manager {
	return &Manager{name: name, maxAge: maxAge, secure: secure}
}

// Name returns the cookie name.
func (m *Manager) Name() string { return m.name }

// Stamp sets the affinity cookie for backend index on the response.
// It is called on every successful response, not only the first, so the
// expiry window slides forward with continued activity. SameSite=None
// because the collaboration frontend and the API live on different
// origins; that combination requires Secure.
func (m *Manager) Stamp(w http.ResponseWriter, index int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    strconv.Itoa(index),
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// Read extracts the sticky index from a parsed request. ok is false
// when the cookie is missing or does not parse as a non-negative
// integer. Range checking against the backend count is the caller's
// concern.
func (m *Manager) Read(r *http.Request) (index int, ok bool) {
	c, err := r.Cookie(m.name)
	if err != nil {
		return 0, false
	}
	return parseIndex(c.Value)
}

// ReadHeader extracts the sticky index from a raw Cookie header value.
// The upgrade path uses this: websocket handshakes bypass the normal
// request pipeline, so no cookie-parsing convenience has run. Kept as a
// pure function so the two entry points share one implementation.
func (m *Manager) ReadHeader(cookieHeader string) (index int, ok bool) {
	return ParseCookieHeader(cookieHeader, m.name)
}

// ParseCookieHeader scans a raw Cookie header ("a=1; b=2") for the
// named cookie and parses its value as a backend index.
func ParseCookieHeader(cookieHeader, name string) (index int, ok bool) {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		if part[:eq] != name {
			continue
		}
		return parseIndex(strings.TrimSpace(part[eq+1:]))
	}
	return 0, false
}

// parseIndex validates a cookie value as a non-negative decimal index.
func parseIndex(value string) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// String implements fmt.Stringer for logging.
func (m *Manager) String() string {
	return fmt.Sprintf("sticky{name=%s maxAge=%s secure=%t}", m.name, m.maxAge, m.secure)
}
