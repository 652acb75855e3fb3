package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yl2chen/cidranger"
)

// ACLMiddleware restricts the admin API to configured networks. Lookups
// go through a PC-trie ranger so a long allowlist stays cheap.
type ACLMiddleware struct {
	ranger            cidranger.Ranger
	trustProxyHeaders bool
	logger            *slog.Logger
}

// NewACLMiddleware parses the allowed networks. Bare IPs are accepted
// and widened to host routes.
func NewACLMiddleware(networks []string, trustProxy bool, logger *slog.Logger) (*ACLMiddleware, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ranger := cidranger.NewPCTrieRanger()
	for _, cidr := range networks {
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}

		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		if err := ranger.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
			return nil, err
		}
	}

	return &ACLMiddleware{
		ranger:            ranger,
		trustProxyHeaders: trustProxy,
		logger:            logger,
	}, nil
}

// Wrap enforces the ACL before calling next.
func (m *ACLMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.extractClientIP(r)
		if clientIP == nil {
			m.logger.Warn("could not parse admin client IP",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		allowed, err := m.ranger.Contains(clientIP)
		if err != nil || !allowed {
			m.logger.Warn("admin API access denied",
				"client_ip", clientIP.String(),
				"path", r.URL.Path,
			)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *ACLMiddleware) extractClientIP(r *http.Request) net.IP {
	if m.trustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(xri); ip != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
