// Package routing derives a stable backend index from an inbound
// request. Everything in this package is pure and side-effect-free: the
// plain HTTP path and the websocket upgrade path both resolve through
// it, and keeping it free of request-pipeline dependencies is what
// stops the two entry points from diverging.
package routing

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/Aaks-hatH/planit-sub000/pkg/sticky"
)

// Reason records why a backend index was chosen. Used for logging,
// metrics, and for deciding whether the sticky cookie needs stamping.
type Reason string

const (
	// ReasonResource means a resource ID was found in the URL and hashed.
	ReasonResource Reason = "resource"
	// ReasonCookie means a valid affinity cookie was honored verbatim.
	ReasonCookie Reason = "cookie"
	// ReasonClientIP means the client address hash fallback was used.
	ReasonClientIP Reason = "client_ip"
)

// Decision is the outcome of resolving one request. Ephemeral; computed
// per request and never persisted.
type Decision struct {
	Index  int
	Reason Reason
	// Key is the string that was hashed (resource ID or client key);
	// empty for cookie decisions.
	Key string
}

// resourceIDPattern matches the canonical resource identifier of the
// platform's primary entity: a 24-character lowercase hex token, as
// found anywhere in an event URL such as /api/events/<id>/chat.
var resourceIDPattern = regexp.MustCompile(`[0-9a-f]{24}`)

// fallbackClientKey is hashed when no client address is recoverable at
// all, so even that degenerate case routes consistently.
const fallbackClientKey = "unknown"

// Resolver maps requests to backend indexes for a fixed backend count.
type Resolver struct {
	n          int
	cookieName string
}

// NewResolver creates a resolver for n backends reading the named
// affinity cookie. n must be at least 1.
func NewResolver(n int, cookieName string) *Resolver {
	return &Resolver{n: n, cookieName: cookieName}
}

// Backends returns the backend count this resolver was built for.
func (r *Resolver) Backends() int { return r.n }

// ResolveRequest resolves a parsed HTTP request.
func (r *Resolver) ResolveRequest(req *http.Request) Decision {
	return r.Resolve(req.URL.RequestURI(), req.Header.Get("Cookie"),
		req.Header.Get("X-Forwarded-For"), req.RemoteAddr)
}

// Resolve applies the three-tier priority, first match wins:
//
//  1. resource ID embedded in the URL — shared by every participant in
//     a room, so it is the strongest signal;
//  2. valid sticky cookie — honored verbatim;
//  3. client address hash — at least self-consistent per device.
//
// It takes raw strings rather than a request so the upgrade
// interceptor, which sees only the raw handshake, uses the identical
// code path.
func (r *Resolver) Resolve(rawURL, cookieHeader, forwardedFor, remoteAddr string) Decision {
	if id, ok := ResourceID(rawURL); ok {
		return Decision{Index: Index(id, r.n), Reason: ReasonResource, Key: id}
	}

	if idx, ok := sticky.ParseCookieHeader(cookieHeader, r.cookieName); ok && idx < r.n {
		return Decision{Index: idx, Reason: ReasonCookie}
	}

	key := ClientKey(forwardedFor, remoteAddr)
	return Decision{Index: Index(key, r.n), Reason: ReasonClientIP, Key: key}
}

// ResourceID scans a request URL (path and query) for the canonical
// resource identifier format.
func ResourceID(rawURL string) (string, bool) {
	id := resourceIDPattern.FindString(rawURL)
	return id, id != ""
}

// ClientKey derives the routing key for the client-address fallback:
// the first X-Forwarded-For entry, else the peer address host, else a
// fixed sentinel.
func ClientKey(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := forwardedFor
		if i := strings.IndexByte(first, ','); i >= 0 {
			first = first[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			return host
		}
		return remoteAddr
	}

	return fallbackClientKey
}
