package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNoBackends is returned when no backend URLs are configured. The
// router treats this as fatal at startup: there is nothing to route to.
var ErrNoBackends = errors.New("no backends configured")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return ErrNoBackends
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, raw := range c.Backends {
		u, err := url.Parse(raw)
		if err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("backends[%d]", i),
				Value:   raw,
				Message: "not a valid URL",
			}
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return &ValidationError{
				Field:   fmt.Sprintf("backends[%d]", i),
				Value:   raw,
				Message: "scheme must be http or https",
			}
		}
		if u.Host == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("backends[%d]", i),
				Value:   raw,
				Message: "missing host",
			}
		}
		if seen[u.Host] {
			return &ValidationError{
				Field:   fmt.Sprintf("backends[%d]", i),
				Value:   raw,
				Message: "duplicate backend host",
			}
		}
		seen[u.Host] = true
	}

	if c.Sticky.CookieName == "" {
		return &ValidationError{
			Field:   "sticky.cookie_name",
			Value:   c.Sticky.CookieName,
			Message: "must not be empty",
		}
	}
	if c.Sticky.MaxAge <= 0 {
		return &ValidationError{
			Field:   "sticky.max_age",
			Value:   c.Sticky.MaxAge,
			Message: "must be positive",
		}
	}

	if c.Proxy.RequestTimeout <= 0 {
		return &ValidationError{
			Field:   "proxy.request_timeout",
			Value:   c.Proxy.RequestTimeout,
			Message: "must be positive",
		}
	}

	if !strings.HasPrefix(c.Health.Path, "/") {
		return &ValidationError{
			Field:   "health.path",
			Value:   c.Health.Path,
			Message: "must start with /",
		}
	}
	if c.Health.Interval <= 0 {
		return &ValidationError{
			Field:   "health.interval",
			Value:   c.Health.Interval,
			Message: "must be positive",
		}
	}
	if c.Health.Timeout <= 0 || c.Health.Timeout >= c.Health.Interval {
		return &ValidationError{
			Field:   "health.timeout",
			Value:   c.Health.Timeout,
			Message: "must be positive and shorter than health.interval",
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return &ValidationError{
				Field:   "rate_limit.rps",
				Value:   c.RateLimit.RPS,
				Message: "must be positive when rate limiting is enabled",
			}
		}
		if c.RateLimit.Burst <= 0 {
			return &ValidationError{
				Field:   "rate_limit.burst",
				Value:   c.RateLimit.Burst,
				Message: "must be positive when rate limiting is enabled",
			}
		}
	}

	if c.API.Enabled {
		for _, cidr := range c.API.AllowedNetworks {
			norm := cidr
			if !strings.Contains(norm, "/") {
				if strings.Contains(norm, ":") {
					norm += "/128"
				} else {
					norm += "/32"
				}
			}
			if _, _, err := net.ParseCIDR(norm); err != nil {
				return &ValidationError{
					Field:   "api.allowed_networks",
					Value:   cidr,
					Message: "not a valid CIDR or IP",
				}
			}
		}
	}

	return nil
}
