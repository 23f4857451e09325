package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/kvstore"
)

// Storage keys and freshness window.
const (
	WeatherCacheKey  = "weather_cache"
	LocationCacheKey = "last_location"

	// CacheTTL is how long a cached reading counts as fresh.
	CacheTTL = time.Hour
)

// Cache lookup results reported to the Recorder.
const (
	lookupFresh    = "fresh"
	lookupStale    = "stale"
	lookupFallback = "fallback"
	lookupMiss     = "miss"
	lookupCorrupt  = "corrupt"
)

// CacheConfig holds the dependencies shared by both cache managers.
type CacheConfig struct {
	// Store is the persistent key-value store.
	Store kvstore.Store

	// Clock supplies the current time (default: system clock).
	Clock Clock

	// Logger for cache operations.
	Logger zerolog.Logger

	// Recorder receives lookup and write-failure events (optional).
	Recorder Recorder

	// TTL is the freshness window (default: CacheTTL).
	TTL time.Duration
}

func (cfg CacheConfig) withDefaults() CacheConfig {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.TTL == 0 {
		cfg.TTL = CacheTTL
	}
	return cfg
}

// WeatherCache owns the cached weather envelope.
type WeatherCache struct {
	store    kvstore.Store
	clock    Clock
	logger   zerolog.Logger
	recorder Recorder
	ttl      time.Duration
}

// NewWeatherCache creates a weather cache manager.
func NewWeatherCache(cfg CacheConfig) *WeatherCache {
	cfg = cfg.withDefaults()
	return &WeatherCache{
		store:    cfg.Store,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		ttl:      cfg.TTL,
	}
}

// TTL returns the freshness window.
func (c *WeatherCache) TTL() time.Duration {
	return c.ttl
}

// ReadFresh returns the cached envelope only if it is younger than the TTL.
// An envelope exactly TTL old is stale.
func (c *WeatherCache) ReadFresh(ctx context.Context) (Envelope, bool) {
	env, err := c.load(ctx)
	if err != nil {
		return Envelope{}, false
	}

	age := env.Age(c.clock.Now())
	if age >= c.ttl {
		c.recorder.CacheLookup(WeatherCacheKey, lookupStale)
		return Envelope{}, false
	}

	c.recorder.CacheLookup(WeatherCacheKey, lookupFresh)
	c.recorder.ReadingAge(age)
	return env, true
}

// ReadStale returns the cached envelope regardless of age.
func (c *WeatherCache) ReadStale(ctx context.Context) (Envelope, bool) {
	env, err := c.load(ctx)
	if err != nil {
		return Envelope{}, false
	}
	c.recorder.CacheLookup(WeatherCacheKey, lookupFallback)
	c.recorder.ReadingAge(env.Age(c.clock.Now()))
	return env, true
}

// Write stores reading with SavedAt set to now and returns the envelope.
// Persistence failures are logged and swallowed.
func (c *WeatherCache) Write(ctx context.Context, reading Reading) Envelope {
	env := Envelope{
		Data:    reading.withDerived(),
		SavedAt: c.clock.Now().UnixMilli(),
	}

	raw, err := json.Marshal(env)
	if err == nil {
		err = c.store.Set(ctx, WeatherCacheKey, raw)
	}
	if err != nil {
		c.recorder.WriteFailed(WeatherCacheKey)
		c.logger.Warn().Err(err).
			Str("key", WeatherCacheKey).
			Msg("failed to persist weather cache")
	}

	return env
}

// load reads and decodes the envelope. Malformed entries are left in place.
func (c *WeatherCache) load(ctx context.Context) (Envelope, error) {
	raw, err := c.store.Get(ctx, WeatherCacheKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", WeatherCacheKey).Msg("failed to read weather cache")
		}
		c.recorder.CacheLookup(WeatherCacheKey, lookupMiss)
		return Envelope{}, err
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		c.recorder.CacheLookup(WeatherCacheKey, lookupCorrupt)
		c.logger.Warn().Err(err).Str("key", WeatherCacheKey).Msg("ignoring malformed weather cache")
		return Envelope{}, err
	}
	return env, nil
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var probe struct {
		Data    *Reading `json:"data"`
		SavedAt *int64   `json:"savedAt"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	if probe.Data == nil || probe.SavedAt == nil {
		return Envelope{}, fmt.Errorf("%w: missing data or savedAt", ErrStorageCorrupt)
	}
	return Envelope{Data: probe.Data.withDerived(), SavedAt: *probe.SavedAt}, nil
}

// LocationCache owns the persisted location preference.
type LocationCache struct {
	store    kvstore.Store
	logger   zerolog.Logger
	recorder Recorder
}

// NewLocationCache creates a location cache manager.
func NewLocationCache(cfg CacheConfig) *LocationCache {
	cfg = cfg.withDefaults()
	return &LocationCache{
		store:    cfg.Store,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
}

// Read returns the stored preference. A corrupt entry is deleted and reported
// as absent.
func (c *LocationCache) Read(ctx context.Context) (Location, bool) {
	raw, err := c.store.Get(ctx, LocationCacheKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", LocationCacheKey).Msg("failed to read location")
		}
		c.recorder.CacheLookup(LocationCacheKey, lookupMiss)
		return Location{}, false
	}

	loc, err := decodeLocation(raw)
	if err != nil {
		c.recorder.CacheLookup(LocationCacheKey, lookupCorrupt)
		c.logger.Warn().Err(err).Str("key", LocationCacheKey).Msg("purging corrupt location")
		if rmErr := c.store.Remove(ctx, LocationCacheKey); rmErr != nil {
			c.logger.Warn().Err(rmErr).Str("key", LocationCacheKey).Msg("failed to purge corrupt location")
		}
		return Location{}, false
	}

	c.recorder.CacheLookup(LocationCacheKey, lookupFresh)
	return loc, true
}

// Write persists pref. Failures are logged and swallowed.
func (c *LocationCache) Write(ctx context.Context, pref Location) {
	raw, err := json.Marshal(pref)
	if err == nil {
		err = c.store.Set(ctx, LocationCacheKey, raw)
	}
	if err != nil {
		c.recorder.WriteFailed(LocationCacheKey)
		c.logger.Warn().Err(err).
			Str("key", LocationCacheKey).
			Str("type", string(pref.Kind)).
			Msg("failed to persist location")
	}
}

func decodeLocation(raw []byte) (Location, error) {
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	if err := loc.validate(); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	return loc, nil
}
