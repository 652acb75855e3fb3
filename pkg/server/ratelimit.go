package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket on the public listener.
// The health endpoint never consults it.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleAfter is how long an idle client's bucket is kept before the
// next sweep drops it.
const staleAfter = 10 * time.Minute

// NewRateLimiter creates a limiter allowing rps requests per second
// with the given burst per client key.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cl, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= 4096 {
			rl.sweepLocked(now)
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// sweepLocked drops buckets for clients not seen recently. Caller holds
// the mutex.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > staleAfter {
			delete(rl.clients, key)
		}
	}
}
