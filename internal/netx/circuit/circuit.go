// Package circuit wires gobreaker around broker and feed calls so a venue
// outage trips fast instead of stacking up timeouts against a dead socket.
package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config controls when a breaker trips and how long it stays open.
type Config struct {
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
	OpenTimeout         time.Duration
}

// DefaultConfig matches the teacher's breaker defaults: trip after 3
// consecutive failures, or after a 5% failure ratio once 20 requests have
// been seen in the rolling interval.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailures: 3,
		MinRequests:         20,
		FailureRatio:        0.05,
		OpenTimeout:         60 * time.Second,
	}
}

// Breaker wraps a single gobreaker.CircuitBreaker for one venue.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a named Breaker.
func New(name string, cfg Config) *Breaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > cfg.FailureRatio
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn if the breaker is closed (or half-open and probing).
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// State reports the breaker's current gobreaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Manager owns one Breaker per named venue (e.g. "broker", "marketdata").
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
}

// NewManager creates a Manager; every venue gets cfg unless added explicitly.
func NewManager(cfg Config) *Manager {
	return &Manager{breakers: make(map[string]*Breaker), cfg: cfg}
}

func (m *Manager) breaker(venue string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[venue]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[venue]; ok {
		return b
	}
	b = New(venue, m.cfg)
	m.breakers[venue] = b
	return b
}

// Execute runs fn through the named venue's breaker, creating it on first use.
func (m *Manager) Execute(ctx context.Context, venue string, fn func(ctx context.Context) error) error {
	return m.breaker(venue).Execute(ctx, fn)
}

// State reports the named venue's breaker state, opening a fresh closed
// breaker if none has been created yet.
func (m *Manager) State(venue string) gobreaker.State {
	return m.breaker(venue).State()
}
