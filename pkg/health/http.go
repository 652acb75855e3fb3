package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// HTTPChecker probes a backend's liveness endpoint with a bounded GET.
type HTTPChecker struct {
	client *http.Client

	// Path is the liveness endpoint on each backend, e.g. "/health".
	Path string
}

// NewHTTPChecker creates an HTTP liveness checker for the given path.
func NewHTTPChecker(path string) *HTTPChecker {
	c := &HTTPChecker{Path: path}

	// Probes use their own client with keep-alives off: a probe should
	// exercise a fresh connection, not reuse the proxy pool's.
	c.client = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			DisableKeepAlives:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

// Type returns "http".
func (c *HTTPChecker) Type() string {
	return "http"
}

// Check performs one GET against the target's liveness endpoint. Any
// 2xx response is healthy.
func (c *HTTPChecker) Check(ctx context.Context, target *url.URL) Result {
	start := time.Now()
	result := Result{Timestamp: start}

	probeURL := target.JoinPath(c.Path).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		result.Latency = time.Since(start)
		return result
	}

	req.Header.Set("User-Agent", "PlanIt-Router-Keepalive/1.0")
	req.Header.Set("Connection", "close")

	resp, err := c.client.Do(req)
	result.Latency = time.Since(start)

	if err != nil {
		result.Error = fmt.Errorf("probe failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Healthy = true
	} else {
		result.Error = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return result
}
