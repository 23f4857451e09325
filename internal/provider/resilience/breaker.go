// Package resilience wraps calls to upstream data sources with a circuit
// breaker, bounded retries and a health registry for the status endpoint.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	tripMinRequests  = 5
	tripFailureRatio = 0.5
	defaultOpenFor   = time.Minute
)

// CircuitBreakerConfig tunes one upstream's breaker. Zero values take the
// defaults of DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests probes are let through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically; 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	ReadyToTrip   func(gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens for a minute once half of at least five
// calls have failed, then lets a single probe through.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     defaultOpenFor,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip reports whether counts cross the default failure ratio.
func DefaultReadyToTrip(c gobreaker.Counts) bool {
	return c.Requests >= tripMinRequests &&
		float64(c.TotalFailures) >= tripFailureRatio*float64(c.Requests)
}

func (cfg CircuitBreakerConfig) settings() gobreaker.Settings {
	s := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		// A caller hanging up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = DefaultReadyToTrip
	}
	return s
}
