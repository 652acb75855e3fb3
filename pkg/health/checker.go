// Package health probes backend liveness on a schedule. The probes
// serve double duty: they keep the registry's health view current and
// they keep the hosting platform from idling backends down during quiet
// periods, so the interval must stay below the platform's idle-sleep
// threshold.
package health

import (
	"context"
	"net/url"
	"time"
)

// Result is the outcome of a single probe.
type Result struct {
	Healthy   bool
	Latency   time.Duration
	Error     error
	Timestamp time.Time
}

// Checker performs a liveness check against one backend.
type Checker interface {
	// Check probes the target. The context carries the probe timeout.
	Check(ctx context.Context, target *url.URL) Result

	// Type returns the check type (e.g. "http").
	Type() string
}

// CheckerFunc is a function adapter for the Checker interface.
type CheckerFunc func(ctx context.Context, target *url.URL) Result

func (f CheckerFunc) Check(ctx context.Context, target *url.URL) Result {
	return f(ctx, target)
}

func (f CheckerFunc) Type() string {
	return "func"
}
