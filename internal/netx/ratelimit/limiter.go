// Package ratelimit gates outbound broker/feed calls with a per-venue token
// bucket so a reconnect storm or a burst of order submissions never exceeds
// what the venue's API allows.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket limiter keyed by venue name (e.g. "broker",
// "marketdata"), each with its own independent bucket.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// New creates a Limiter with the given requests-per-second and burst for
// every venue it is asked about.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) venueLimiter(venue string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[venue]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[venue]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[venue] = lim
	return lim
}

// Allow reports whether a request to venue may proceed right now.
func (l *Limiter) Allow(venue string) bool {
	return l.venueLimiter(venue).Allow()
}

// Wait blocks until a request to venue is allowed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, venue string) error {
	return l.venueLimiter(venue).Wait(ctx)
}

// Stats reports one venue's limiter configuration and its current token count.
type Stats struct {
	RPS             float64
	Burst           int
	TokensAvailable float64
}

// Stats snapshots every known venue's limiter state.
func (l *Limiter) Stats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Stats, len(l.limiters))
	for venue, lim := range l.limiters {
		out[venue] = Stats{RPS: float64(lim.Limit()), Burst: lim.Burst(), TokensAvailable: lim.Tokens()}
	}
	return out
}
