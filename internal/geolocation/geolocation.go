// Package geolocation provides weather.Locator implementations for a server
// process: a fixed position, an IP lookup, and a disabled locator that always
// denies. Cached adds the maximum-age contract on top of any of them.
package geolocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/weather"
)

// Modes accepted by New.
const (
	ModeDisabled = "disabled"
	ModeStatic   = "static"
	ModeIP       = "ip"
)

// Disabled is a Locator that is never able to produce a position.
type Disabled struct{}

// Locate always fails with weather.ErrGeolocationDenied.
func (Disabled) Locate(context.Context, weather.PositionOptions) (weather.Position, error) {
	return weather.Position{}, fmt.Errorf("%w: geolocation disabled", weather.ErrGeolocationDenied)
}

// Static returns a configured position.
type Static struct {
	Lat float64
	Lon float64

	// Now stamps the fix (default: time.Now).
	Now func() time.Time
}

// Locate returns the configured position unless ctx is already done.
func (s Static) Locate(ctx context.Context, _ weather.PositionOptions) (weather.Position, error) {
	if err := ctx.Err(); err != nil {
		return weather.Position{}, fmt.Errorf("%w: %w", weather.ErrGeolocationDenied, err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return weather.Position{Lat: s.Lat, Lon: s.Lon, Timestamp: now()}, nil
}

// Cached reuses the last fix while it is younger than the caller's MaximumAge.
type Cached struct {
	next   weather.Locator
	now    func() time.Time
	logger zerolog.Logger

	mu   sync.Mutex
	last *weather.Position
}

// NewCached wraps next. A nil now uses time.Now.
func NewCached(next weather.Locator, now func() time.Time, logger zerolog.Logger) *Cached {
	if now == nil {
		now = time.Now
	}
	return &Cached{next: next, now: now, logger: logger}
}

// Locate returns the cached fix when it is recent enough, otherwise asks the
// wrapped locator within opts.Timeout.
func (c *Cached) Locate(ctx context.Context, opts weather.PositionOptions) (weather.Position, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if last != nil && opts.MaximumAge > 0 && c.now().Sub(last.Timestamp) < opts.MaximumAge {
		c.logger.Debug().
			Time("fix_at", last.Timestamp).
			Msg("reusing cached position")
		return *last, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	pos, err := c.next.Locate(ctx, opts)
	if err != nil {
		return weather.Position{}, err
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = c.now()
	}

	c.mu.Lock()
	c.last = &pos
	c.mu.Unlock()
	return pos, nil
}
