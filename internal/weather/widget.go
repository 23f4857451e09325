package weather

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Messages surfaced to the display.
const (
	FetchFailedMessage  = "Unable to fetch weather data. Please check your connection."
	InitFailedMessage   = "Unable to load weather data. Please refresh the page."
	CityNotFoundMessage = "City not found — please try again"
)

// Fetch endpoints and outcomes reported to the Recorder.
const (
	endpointGeocode = "geocode"
	endpointWeather = "weather"

	outcomeOK        = "ok"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
	outcomeDiscarded = "discarded"
)

// Snapshot is the observable widget state.
type Snapshot struct {
	State State

	// Reading is the displayed envelope, nil when nothing is shown.
	Reading *Envelope

	// Stale is set when Reading is a fallback after a failed fetch.
	Stale bool

	ErrorMessage string
	CityError    string

	// NextRefreshAt is when the armed refresh timer fires (zero if none).
	NextRefreshAt time.Time

	// Version increases with every state change.
	Version uint64
}

func (s Snapshot) clone() Snapshot {
	if s.Reading != nil {
		env := *s.Reading
		s.Reading = &env
	}
	return s
}

// WidgetConfig holds configuration for the weather widget.
type WidgetConfig struct {
	// Provider is the weather and geocoding data source.
	Provider Provider

	// Locator is the geolocation capability. Nil means unavailable.
	Locator Locator

	WeatherCache  *WeatherCache
	LocationCache *LocationCache

	// Clock supplies time and the refresh timer (default: system clock).
	Clock Clock

	// Logger for widget operations.
	Logger zerolog.Logger

	// Recorder receives fetch and transition events (optional).
	Recorder Recorder

	// PositionOptions bound geolocation (default: DefaultPositionOptions).
	PositionOptions PositionOptions

	// FetchTimeout bounds timer-driven refreshes (default: 30 seconds).
	FetchTimeout time.Duration
}

// Widget is the weather acquisition state machine. Exported methods block
// until the attempt they start has settled and are safe for concurrent use.
// Every attempt takes a sequence number; completions of superseded attempts
// are discarded.
type Widget struct {
	provider     Provider
	locator      Locator
	weather      *WeatherCache
	locations    *LocationCache
	clock        Clock
	logger       zerolog.Logger
	recorder     Recorder
	ttl          time.Duration
	positionOpts PositionOptions
	fetchTimeout time.Duration

	mu          sync.Mutex
	snap        Snapshot
	seq         uint64
	timer       Timer
	closed      bool
	subscribers map[string]func(Snapshot)

	// notifyMu orders delivery; delivered is the newest version handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewWidget creates a widget in the idle state.
func NewWidget(cfg WidgetConfig) *Widget {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	positionOpts := cfg.PositionOptions
	if positionOpts.Timeout == 0 {
		positionOpts.Timeout = DefaultPositionOptions.Timeout
	}
	if positionOpts.MaximumAge == 0 {
		positionOpts.MaximumAge = DefaultPositionOptions.MaximumAge
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 30 * time.Second
	}

	return &Widget{
		provider:     cfg.Provider,
		locator:      cfg.Locator,
		weather:      cfg.WeatherCache,
		locations:    cfg.LocationCache,
		clock:        clock,
		logger:       cfg.Logger,
		recorder:     recorder,
		ttl:          cfg.WeatherCache.TTL(),
		positionOpts: positionOpts,
		fetchTimeout: fetchTimeout,
		snap:         Snapshot{State: StateIdle},
		subscribers:  make(map[string]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap.clone()
}

// Subscribe registers fn to receive new snapshots in version order. A
// snapshot superseded before delivery is skipped. fn must not call the
// widget's state-changing methods. The returned function removes the
// subscription.
func (w *Widget) Subscribe(fn func(Snapshot)) func() {
	id := uuid.NewString()

	w.mu.Lock()
	w.subscribers[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subscribers, id)
		w.mu.Unlock()
	}
}

// Activate resolves weather from the fresh cache, then the stored location,
// then geolocation.
func (w *Widget) Activate(ctx context.Context) (snap Snapshot) {
	seq := w.nextAttempt()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("weather widget activation failed")
			w.apply(seq, func(s *Snapshot) {
				s.State = StateError
				s.Reading = nil
				s.Stale = false
				s.ErrorMessage = InitFailedMessage
			})
		}
		snap = w.Snapshot()
	}()

	if env, ok := w.weather.ReadFresh(ctx); ok {
		w.logger.Debug().
			Dur("age", env.Age(w.clock.Now())).
			Msg("serving fresh cached weather")

		if w.apply(seq, func(s *Snapshot) {
			s.State = StateLoaded
			s.Reading = &env
			s.Stale = false
			s.ErrorMessage = ""
		}) {
			w.scheduleRefresh(seq, env.Data)
		}
		return
	}

	loc, ok := w.locations.Read(ctx)
	if !ok {
		w.locate(ctx, seq)
		return
	}
	w.resolve(ctx, seq, loc, true)
	return
}

// SubmitCity geocodes a user-entered city name and fetches its weather.
// Blank input is rejected with ErrEmptyCity and changes nothing.
func (w *Widget) SubmitCity(ctx context.Context, city string) (Snapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return w.Snapshot(), ErrEmptyCity
	}

	seq := w.nextAttempt()
	w.apply(seq, func(s *Snapshot) { s.CityError = "" })
	w.fetchByCity(ctx, seq, city)
	return w.Snapshot(), nil
}

// Retry replays resolution from the location stored right now, falling back
// to geolocation when none is stored.
func (w *Widget) Retry(ctx context.Context) Snapshot {
	seq := w.nextAttempt()

	loc, ok := w.locations.Read(ctx)
	if !ok {
		w.locate(ctx, seq)
		return w.Snapshot()
	}
	w.resolve(ctx, seq, loc, false)
	return w.Snapshot()
}

// Refresh re-fetches for the stored location. Without one it does nothing.
func (w *Widget) Refresh(ctx context.Context) Snapshot {
	loc, ok := w.locations.Read(ctx)
	if !ok {
		w.logger.Debug().Msg("refresh skipped: no stored location")
		return w.Snapshot()
	}

	seq := w.nextAttempt()
	w.resolve(ctx, seq, loc, false)
	return w.Snapshot()
}

// Close disarms the refresh timer and stops all further transitions.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.snap.NextRefreshAt = time.Time{}
}

// resolve picks the coordinate or city path for a stored location. On
// activation a city preference is geocoded again by name.
func (w *Widget) resolve(ctx context.Context, seq uint64, loc Location, byName bool) {
	useName := loc.CityName != "" && (!loc.HasCoordinates() || (byName && loc.Kind == LocationCity))
	if useName {
		w.fetchByCity(ctx, seq, loc.CityName)
		return
	}
	w.fetchWeather(ctx, seq, *loc.Lat, *loc.Lon, loc.CityName)
}

func (w *Widget) locate(ctx context.Context, seq uint64) {
	if !w.apply(seq, setState(StateLocating)) {
		return
	}

	if w.locator == nil {
		w.logger.Info().Msg("geolocation not configured, asking for a city")
		w.apply(seq, setState(StateCityInput))
		return
	}

	locateCtx, cancel := context.WithTimeout(ctx, w.positionOpts.Timeout)
	pos, err := w.locator.Locate(locateCtx, w.positionOpts)
	cancel()

	if err != nil {
		w.logger.Info().Err(err).Msg("geolocation unavailable, asking for a city")
		w.apply(seq, setState(StateCityInput))
		return
	}
	if !w.isCurrent(seq) {
		return
	}

	w.locations.Write(ctx, GeoLocation(pos.Lat, pos.Lon))
	w.fetchWeather(ctx, seq, pos.Lat, pos.Lon, "")
}

func (w *Widget) fetchByCity(ctx context.Context, seq uint64, city string) {
	if !w.apply(seq, setState(StateLoading)) {
		return
	}

	result, err := w.provider.GeocodeCity(ctx, city)
	if !w.isCurrent(seq) {
		w.discard(endpointGeocode, seq)
		return
	}

	switch {
	case errors.Is(err, ErrGeocodeNotFound):
		w.recorder.FetchCompleted(endpointGeocode, outcomeNotFound)
		w.logger.Info().Str("city", city).Msg("city not found")
		w.apply(seq, func(s *Snapshot) {
			s.CityError = CityNotFoundMessage
			s.State = StateCityInput
		})
		return

	case err != nil:
		w.recorder.FetchCompleted(endpointGeocode, outcomeError)
		w.logger.Error().Err(err).
			Str("city", city).
			Str("provider", w.provider.Name()).
			Msg("failed to geocode city")
		w.fallback(ctx, seq)
		return
	}

	w.recorder.FetchCompleted(endpointGeocode, outcomeOK)
	w.locations.Write(ctx, CityLocation(result.Name, result.Latitude, result.Longitude))
	w.fetchWeather(ctx, seq, result.Latitude, result.Longitude, result.Name)
}

func (w *Widget) fetchWeather(ctx context.Context, seq uint64, lat, lon float64, locationName string) {
	if !w.apply(seq, setState(StateLoading)) {
		return
	}

	conditions, err := w.provider.CurrentConditions(ctx, lat, lon)
	if !w.isCurrent(seq) {
		w.discard(endpointWeather, seq)
		return
	}

	if err != nil {
		w.recorder.FetchCompleted(endpointWeather, outcomeError)
		w.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", w.provider.Name()).
			Msg("failed to fetch weather")
		w.fallback(ctx, seq)
		return
	}

	w.recorder.FetchCompleted(endpointWeather, outcomeOK)
	reading := NewReading(locationName, *conditions, w.clock.Now())
	env := w.weather.Write(ctx, reading)

	if w.apply(seq, func(s *Snapshot) {
		s.State = StateLoaded
		s.Reading = &env
		s.Stale = false
		s.ErrorMessage = ""
		s.CityError = ""
	}) {
		w.scheduleRefresh(seq, reading)
	}

	w.logger.Info().
		Str("location", locationName).
		Float64("temp_c", reading.TempC).
		Int("code", reading.WeatherCode).
		Msg("weather updated")
}

// fallback shows the stale cache after a failed fetch, or the error state when
// nothing was ever cached. The refresh cadence continues either way.
func (w *Widget) fallback(ctx context.Context, seq uint64) {
	env, ok := w.weather.ReadStale(ctx)

	applied := w.apply(seq, func(s *Snapshot) {
		if ok {
			s.State = StateLoaded
			s.Reading = &env
			s.Stale = true
			s.ErrorMessage = ""
			return
		}
		s.State = StateError
		s.Reading = nil
		s.Stale = false
		s.ErrorMessage = FetchFailedMessage
	})
	if !applied {
		return
	}

	if ok {
		w.logger.Warn().
			Time("saved_at", env.SavedTime()).
			Msg("serving stale weather data due to provider error")
	}
	w.armTimer(seq, w.ttl)
}

// scheduleRefresh arms the timer for the remaining lifetime of reading, so
// refreshes keep a fixed cadence from the original fetch.
func (w *Widget) scheduleRefresh(seq uint64, reading Reading) {
	remaining := w.ttl - w.clock.Now().Sub(reading.FetchedTime())
	if remaining < 0 {
		remaining = 0
	}
	w.armTimer(seq, remaining)
}

// armTimer replaces any armed refresh timer.
func (w *Widget) armTimer(seq uint64, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || seq != w.seq {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(delay, w.onRefreshTimer)
	w.snap.NextRefreshAt = w.clock.Now().Add(delay)

	w.logger.Debug().Dur("delay", delay).Msg("weather refresh armed")
}

func (w *Widget) onRefreshTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), w.fetchTimeout)
	defer cancel()

	w.logger.Debug().Msg("weather refresh timer fired")
	w.Refresh(ctx)
}

func (w *Widget) nextAttempt() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	return w.seq
}

func (w *Widget) isCurrent(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && seq == w.seq
}

func (w *Widget) discard(endpoint string, seq uint64) {
	w.recorder.FetchCompleted(endpoint, outcomeDiscarded)
	w.logger.Debug().
		Str("endpoint", endpoint).
		Uint64("attempt", seq).
		Msg("discarding superseded fetch result")
}

// apply mutates the snapshot if seq is still the latest attempt, then
// notifies subscribers outside the state lock.
func (w *Widget) apply(seq uint64, mutate func(*Snapshot)) bool {
	w.mu.Lock()
	if w.closed || seq != w.seq {
		w.mu.Unlock()
		return false
	}

	from := w.snap.State
	mutate(&w.snap)
	w.snap.Version++
	snap := w.snap.clone()

	subscribers := make([]func(Snapshot), 0, len(w.subscribers))
	for _, fn := range w.subscribers {
		subscribers = append(subscribers, fn)
	}
	w.mu.Unlock()

	if from != snap.State {
		w.recorder.StateChanged(string(from), string(snap.State))
		w.logger.Debug().
			Str("from", string(from)).
			Str("to", string(snap.State)).
			Uint64("attempt", seq).
			Msg("weather widget state changed")
	}

	w.notify(snap, subscribers)
	return true
}

// notify delivers snap unless a newer version already went out.
func (w *Widget) notify(snap Snapshot, subscribers []func(Snapshot)) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	if snap.Version <= w.delivered {
		return
	}
	w.delivered = snap.Version
	for _, fn := range subscribers {
		fn(snap)
	}
}

func setState(state State) func(*Snapshot) {
	return func(s *Snapshot) { s.State = state }
}
