package proxy

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Aaks-hatH/planit-sub000/pkg/metrics"
)

// IsUpgrade reports whether r is a websocket upgrade handshake.
func IsUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// ServeUpgrade hands a websocket handshake to this entry's upstream:
// dial, replay the handshake verbatim (with Host rewritten), hijack the
// client socket, then copy bytes both ways until either side closes.
// Upgrades bypass the buffered response path entirely, so the sticky
// cookie cannot be stamped here; reconnects rely on the cookie stamped
// by earlier polling responses or on the resource ID in the URL.
func (e *Entry) ServeUpgrade(w http.ResponseWriter, r *http.Request) {
	e.registry.IncrementRequests(e.index)
	metrics.UpgradesTotal.WithLabelValues(e.target.String()).Inc()

	upstream, err := e.dialUpstream()
	if err != nil {
		e.registry.MarkDown(e.index)
		metrics.UpstreamErrorsTotal.WithLabelValues(e.target.String()).Inc()
		metrics.SetBackendUp(e.target.String(), false)
		e.logger.Warn("upgrade dial failed", "error", err)
		WriteBackendUnavailable(w)
		return
	}
	defer upstream.Close()

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		e.logger.Error("response writer does not support hijacking")
		WriteBackendUnavailable(w)
		return
	}

	outReq := r.Clone(r.Context())
	outReq.Host = e.target.Host
	outReq.RequestURI = ""
	if err := outReq.Write(upstream); err != nil {
		e.registry.MarkDown(e.index)
		e.logger.Warn("upgrade handshake write failed", "error", err)
		WriteBackendUnavailable(w)
		return
	}

	client, buffered, err := hijacker.Hijack()
	if err != nil {
		e.logger.Error("hijack failed", "error", err)
		return
	}
	defer client.Close()

	// The connection is now a long-lived bidirectional channel; request
	// deadlines no longer apply.
	_ = client.SetDeadline(time.Time{})

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(upstream, buffered)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(client, upstream)
		errc <- err
	}()
	<-errc

	e.logger.Debug("upgrade connection closed", "path", r.URL.Path)
}

// dialUpstream opens a raw connection to this entry's upstream,
// wrapping in TLS for https targets.
func (e *Entry) dialUpstream() (net.Conn, error) {
	addr := e.target.Host
	if e.target.Port() == "" {
		if e.target.Scheme == "https" {
			addr = net.JoinHostPort(e.target.Hostname(), "443")
		} else {
			addr = net.JoinHostPort(e.target.Hostname(), "80")
		}
	}

	conn, err := net.DialTimeout("tcp", addr, e.opts.DialTimeout)
	if err != nil {
		return nil, err
	}

	if e.target.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: e.target.Hostname()})
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}

	return conn, nil
}
