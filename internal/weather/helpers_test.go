package weather_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/morningdash/morningdash/internal/kvstore"
	"github.com/morningdash/morningdash/internal/weather"
)

// fakeClock is a manually advanced clock whose timers fire on Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.February, 16, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) weather.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// armed returns the timers that are neither stopped nor fired.
func (c *fakeClock) armed() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// mockProvider is a mock weather data source for testing.
type mockProvider struct {
	mu           sync.Mutex
	geocodeCalls int
	weatherCalls int
	lastLat      float64
	lastLon      float64

	cities     map[string]*weather.GeocodeResult
	geocodeErr error

	conditions *weather.Conditions
	weatherErr error

	// weatherFn overrides conditions/weatherErr when set. call is 1-based.
	weatherFn func(call int) (*weather.Conditions, error)
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		cities: map[string]*weather.GeocodeResult{
			"London": {Name: "London", Latitude: 51.50853, Longitude: -0.12574, Country: "United Kingdom", Admin1: "England"},
		},
		conditions: &weather.Conditions{TempC: 15, Humidity: 72, WeatherCode: 3},
	}
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) GeocodeCity(_ context.Context, name string) (*weather.GeocodeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geocodeCalls++

	if m.geocodeErr != nil {
		return nil, m.geocodeErr
	}
	if r, ok := m.cities[name]; ok {
		return r, nil
	}
	return nil, weather.ErrGeocodeNotFound
}

func (m *mockProvider) CurrentConditions(_ context.Context, lat, lon float64) (*weather.Conditions, error) {
	m.mu.Lock()
	m.weatherCalls++
	call := m.weatherCalls
	m.lastLat, m.lastLon = lat, lon
	fn := m.weatherFn
	conditions, err := m.conditions, m.weatherErr
	m.mu.Unlock()

	if fn != nil {
		return fn(call)
	}
	if err != nil {
		return nil, err
	}
	c := *conditions
	return &c, nil
}

func (m *mockProvider) calls() (geocode, current int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geocodeCalls, m.weatherCalls
}

func (m *mockProvider) lastCoords() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLat, m.lastLon
}

func (m *mockProvider) setWeatherErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weatherErr = err
}

// mockLocator returns a fixed position or error.
type mockLocator struct {
	mu    sync.Mutex
	pos   weather.Position
	err   error
	calls int
	opts  weather.PositionOptions
}

func (l *mockLocator) Locate(_ context.Context, opts weather.PositionOptions) (weather.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.opts = opts
	if l.err != nil {
		return weather.Position{}, l.err
	}
	return l.pos, nil
}

// failingStore is a store whose writes always fail.
type failingStore struct {
	*kvstore.Memory
}

var errQuotaExceeded = errors.New("quota exceeded")

func (failingStore) Set(context.Context, string, []byte) error {
	return errQuotaExceeded
}

// countingRecorder captures recorder events.
type countingRecorder struct {
	mu          sync.Mutex
	writeFailed map[string]int
	lookups     map[string]int
	fetches     map[string]int
	transitions []string
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		writeFailed: make(map[string]int),
		lookups:     make(map[string]int),
		fetches:     make(map[string]int),
	}
}

func (r *countingRecorder) CacheLookup(cache, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[cache+":"+result]++
}

func (r *countingRecorder) FetchCompleted(endpoint, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[endpoint+":"+outcome]++
}

func (r *countingRecorder) StateChanged(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *countingRecorder) WriteFailed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeFailed[key]++
}

func (r *countingRecorder) ReadingAge(time.Duration) {}

func (r *countingRecorder) fetchCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches[key]
}
