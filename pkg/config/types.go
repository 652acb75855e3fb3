// Package config provides configuration loading and validation for the PlanIt router.
package config

import "time"

// Config is the root configuration structure for the router.
type Config struct {
	// Backends is the ordered list of upstream base URLs. Order matters:
	// the position of a backend is the index encoded in sticky cookies,
	// so reordering this list across a deploy invalidates outstanding
	// cookies.
	Backends []string `yaml:"backends"`

	Listen    ListenConfig    `yaml:"listen"`
	Sticky    StickyConfig    `yaml:"sticky"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Health    HealthConfig    `yaml:"health"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Journal   JournalConfig   `yaml:"journal"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	API       APIConfig       `yaml:"api"`
}

// ListenConfig defines the public listener settings.
type ListenConfig struct {
	Address string `yaml:"address"`
}

// StickyConfig defines the affinity cookie settings.
type StickyConfig struct {
	CookieName string        `yaml:"cookie_name"`
	MaxAge     time.Duration `yaml:"max_age"`
	// Secure controls the cookie's Secure attribute. Defaults to true;
	// disable only for plain-HTTP development setups.
	Secure *bool `yaml:"secure"`
}

// ProxyConfig defines upstream forwarding settings.
type ProxyConfig struct {
	// RequestTimeout bounds a single proxied request, after which it
	// fails as upstream-unavailable rather than hanging.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	IdleConns      int           `yaml:"idle_conns"`
}

// HealthConfig defines the keepalive prober settings.
type HealthConfig struct {
	// Path is the liveness endpoint on each backend.
	Path string `yaml:"path"`
	// Interval between probes of the same backend. Must stay well under
	// the hosting platform's idle-sleep threshold for keepalive to work.
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	// Stagger spaces out the initial probes so a cold start does not
	// burst-probe every backend at once.
	Stagger time.Duration `yaml:"stagger"`
}

// RateLimitConfig defines optional per-client rate limiting on the
// public listener. The router health endpoint is always exempt.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// JournalConfig defines the optional health-incident journal.
type JournalConfig struct {
	// Path is the bbolt database file. Empty disables the journal.
	Path string `yaml:"path"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig defines Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// APIConfig defines the admin API server settings.
type APIConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Address           string   `yaml:"address"`
	AllowedNetworks   []string `yaml:"allowed_networks"`
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
}

// StickySecure reports the effective Secure flag for the affinity cookie.
func (c *Config) StickySecure() bool {
	if c.Sticky.Secure == nil {
		return true
	}
	return *c.Sticky.Secure
}
