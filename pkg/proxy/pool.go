// Package proxy owns one long-lived reverse-proxy instance per
// configured backend. Each instance is bound to a single upstream and
// keeps its own connection pool; re-targeting a shared pool per request
// would thrash upstream connections instead.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/metrics"
	"github.com/Aaks-hatH/planit-sub000/pkg/registry"
)

// Options configures upstream forwarding.
type Options struct {
	// RequestTimeout bounds the wait for upstream response headers;
	// past it the request fails as upstream-unavailable.
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	IdleConns      int
	Logger         *slog.Logger
}

// Pool holds the per-backend proxy entries, indexed identically to the
// registry.
type Pool struct {
	entries []*Entry
}

// Entry is the dedicated proxy for one backend.
type Entry struct {
	index    int
	target   *url.URL
	reverse  *httputil.ReverseProxy
	registry *registry.Registry
	opts     Options
	logger   *slog.Logger
}

// NewPool builds one proxy entry per registry target.
func NewPool(reg *registry.Registry, opts Options) *Pool {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.IdleConns == 0 {
		opts.IdleConns = 32
	}

	entries := make([]*Entry, reg.Len())
	for i := 0; i < reg.Len(); i++ {
		entries[i] = newEntry(i, reg, opts)
	}
	return &Pool{entries: entries}
}

// Entry returns the proxy bound to backend index i, or nil if out of range.
func (p *Pool) Entry(i int) *Entry {
	if i < 0 || i >= len(p.entries) {
		return nil
	}
	return p.entries[i]
}

// Len returns the number of entries.
func (p *Pool) Len() int { return len(p.entries) }

func newEntry(index int, reg *registry.Registry, opts Options) *Entry {
	target := reg.Target(index).URL()
	logger := opts.Logger.With("backend", target.String(), "index", index)

	e := &Entry{
		index:    index,
		target:   target,
		registry: reg,
		opts:     opts,
		logger:   logger,
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          opts.IdleConns,
		MaxIdleConnsPerHost:   opts.IdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.RequestTimeout,
	}

	e.reverse = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Upstreams route virtual hosts by Host, so it must name
			// the upstream origin, not the router.
			pr.Out.Host = target.Host
		},
		Transport:    transport,
		ErrorHandler: e.handleUpstreamError,
	}

	return e
}

// Index returns the backend index this entry forwards to.
func (e *Entry) Index() int { return e.index }

// Target returns the upstream base URL.
func (e *Entry) Target() *url.URL { return e.target }

// ServeHTTP forwards one request upstream and streams the response back.
func (e *Entry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.registry.IncrementRequests(e.index)
	metrics.ProxiedRequestsTotal.WithLabelValues(e.target.String()).Inc()
	e.reverse.ServeHTTP(w, r)
}

// handleUpstreamError answers connection failures and timeouts with a
// structured retryable response and flags the target down immediately,
// without waiting for the next scheduled probe. A canceled client
// context is not evidence against the backend.
func (e *Entry) handleUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		e.logger.Debug("client canceled request", "path", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	e.registry.MarkDown(e.index)
	metrics.UpstreamErrorsTotal.WithLabelValues(e.target.String()).Inc()
	metrics.SetBackendUp(e.target.String(), false)

	e.logger.Warn("upstream unreachable",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
	)

	WriteBackendUnavailable(w)
}

// unavailableBody is the client-facing payload for an unreachable
// backend. Clients see this or a proxied upstream response, never a raw
// connection reset or router-internal error.
type unavailableBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteBackendUnavailable writes the structured 502 response.
func WriteBackendUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(unavailableBody{
		Error:   "backend_unavailable",
		Message: "The event service is temporarily unreachable. Please retry shortly.",
	})
}
