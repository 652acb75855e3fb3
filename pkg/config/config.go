package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	// Listener defaults
	DefaultListenAddress = ":8080"

	// Sticky cookie defaults
	DefaultCookieName = "planit_route"
	DefaultCookieAge  = 24 * time.Hour

	// Proxy defaults
	DefaultRequestTimeout = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultIdleConns      = 32

	// Health probe defaults. The interval must stay comfortably below the
	// hosting platform's idle-sleep threshold (15 minutes on the reference
	// platform) with margin for a missed cycle or two.
	DefaultHealthPath     = "/health"
	DefaultHealthInterval = 4 * time.Minute
	DefaultHealthTimeout  = 10 * time.Second
	DefaultHealthStagger  = 2 * time.Second

	// Rate limit defaults (used only when enabled)
	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Admin API defaults
	DefaultAPIAddress = "127.0.0.1:8081"

	// Metrics defaults
	DefaultMetricsAddress = "127.0.0.1:9090"
)

// DefaultAPIAllowedNetworks defines the default networks allowed to access the admin API.
var DefaultAPIAllowedNetworks = []string{"127.0.0.1/32", "::1/128"}

// EnvBackends is the environment variable holding the ordered,
// comma-separated backend base URL list. When set it overrides the
// backends from the configuration file.
const EnvBackends = "PLANIT_BACKENDS"

// Load reads and parses a configuration file from the given path, then
// applies environment overrides. An empty path yields the default
// configuration (environment overrides still apply), so the router can
// run from PLANIT_BACKENDS alone.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		applyDefaults(cfg)
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Parse parses configuration from YAML bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = DefaultListenAddress
	}

	if cfg.Sticky.CookieName == "" {
		cfg.Sticky.CookieName = DefaultCookieName
	}
	if cfg.Sticky.MaxAge == 0 {
		cfg.Sticky.MaxAge = DefaultCookieAge
	}

	if cfg.Proxy.RequestTimeout == 0 {
		cfg.Proxy.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Proxy.DialTimeout == 0 {
		cfg.Proxy.DialTimeout = DefaultDialTimeout
	}
	if cfg.Proxy.IdleConns == 0 {
		cfg.Proxy.IdleConns = DefaultIdleConns
	}

	if cfg.Health.Path == "" {
		cfg.Health.Path = DefaultHealthPath
	}
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = DefaultHealthInterval
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = DefaultHealthTimeout
	}
	if cfg.Health.Stagger == 0 {
		cfg.Health.Stagger = DefaultHealthStagger
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS == 0 {
			cfg.RateLimit.RPS = DefaultRateLimitRPS
		}
		if cfg.RateLimit.Burst == 0 {
			cfg.RateLimit.Burst = DefaultRateLimitBurst
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.API.Address == "" {
		cfg.API.Address = DefaultAPIAddress
	}
	if len(cfg.API.AllowedNetworks) == 0 {
		cfg.API.AllowedNetworks = DefaultAPIAllowedNetworks
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = DefaultMetricsAddress
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv(EnvBackends); raw != "" {
		cfg.Backends = SplitBackendList(raw)
	}
}

// SplitBackendList splits a comma-separated backend URL list, trimming
// whitespace and dropping empty entries. Order is preserved.
func SplitBackendList(raw string) []string {
	var backends []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			backends = append(backends, part)
		}
	}
	return backends
}
