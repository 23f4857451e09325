package weather

import (
	"context"
	"errors"
	"math"
	"time"
)

// Weather errors.
var (
	// ErrGeocodeNotFound means the place name matched nothing. It is user-correctable.
	ErrGeocodeNotFound = errors.New("city not found")

	// ErrFetchFailed wraps network and decoding failures on either endpoint.
	ErrFetchFailed = errors.New("weather fetch failed")

	// ErrGeolocationDenied covers permission denial, unavailability and timeout.
	ErrGeolocationDenied = errors.New("geolocation denied or unavailable")

	// ErrStorageCorrupt is returned by cache decoders. It never reaches the display.
	ErrStorageCorrupt = errors.New("corrupt cache entry")

	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrEmptyCity          = errors.New("city name is empty")
)

// Reading is one set of current conditions. It is created by a successful
// fetch and replaced, never mutated, by the next one.
type Reading struct {
	LocationName string  `json:"locationName"`
	TempC        float64 `json:"tempC"`
	TempF        int     `json:"tempF"`
	Humidity     int     `json:"humidity"`
	WeatherCode  int     `json:"weatherCode"`
	Description  string  `json:"description"`
	Icon         string  `json:"icon"`

	// FetchedAt is the acquisition time in Unix milliseconds.
	FetchedAt int64 `json:"fetchedAt"`
}

// NewReading builds a Reading from raw conditions, deriving the Fahrenheit
// value, description and icon.
func NewReading(locationName string, c Conditions, fetchedAt time.Time) Reading {
	r := Reading{
		LocationName: locationName,
		TempC:        c.TempC,
		Humidity:     c.Humidity,
		WeatherCode:  c.WeatherCode,
		FetchedAt:    fetchedAt.UnixMilli(),
	}
	return r.withDerived()
}

// withDerived recomputes every field that is a function of another field.
func (r Reading) withDerived() Reading {
	cond := Translate(r.WeatherCode)
	r.TempF = Fahrenheit(r.TempC)
	r.Description = cond.Description
	r.Icon = cond.Icon
	return r
}

// FetchedTime returns FetchedAt as a time.Time.
func (r Reading) FetchedTime() time.Time {
	return time.UnixMilli(r.FetchedAt)
}

// Envelope is the cached form of a Reading.
type Envelope struct {
	Data Reading `json:"data"`

	// SavedAt is the cache write time in Unix milliseconds.
	SavedAt int64 `json:"savedAt"`
}

// SavedTime returns SavedAt as a time.Time.
func (e Envelope) SavedTime() time.Time {
	return time.UnixMilli(e.SavedAt)
}

// Age returns how old the envelope is at now.
func (e Envelope) Age(now time.Time) time.Duration {
	return now.Sub(e.SavedTime())
}

// Fahrenheit converts Celsius to whole Fahrenheit degrees, rounding half away
// from zero.
func Fahrenheit(celsius float64) int {
	return int(math.Round(celsius*9/5 + 32))
}

// LocationKind says how a location was determined.
type LocationKind string

const (
	LocationGeo  LocationKind = "geo"
	LocationCity LocationKind = "city"
)

// Location is the persisted location preference.
type Location struct {
	Kind     LocationKind `json:"type"`
	Lat      *float64     `json:"lat"`
	Lon      *float64     `json:"lon"`
	CityName string       `json:"cityName"`
}

// GeoLocation returns a preference for raw device coordinates.
func GeoLocation(lat, lon float64) Location {
	return Location{Kind: LocationGeo, Lat: &lat, Lon: &lon}
}

// CityLocation returns a preference for a geocoded city.
func CityLocation(name string, lat, lon float64) Location {
	return Location{Kind: LocationCity, Lat: &lat, Lon: &lon, CityName: name}
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// validate rejects preferences that cannot drive a fetch.
func (l Location) validate() error {
	switch l.Kind {
	case LocationGeo:
		if !l.HasCoordinates() {
			return errors.New("geo location without coordinates")
		}
	case LocationCity:
		if l.CityName == "" && !l.HasCoordinates() {
			return errors.New("city location without name or coordinates")
		}
	default:
		return errors.New("unknown location type " + string(l.Kind))
	}
	if l.HasCoordinates() {
		return validateCoordinates(*l.Lat, *l.Lon)
	}
	return nil
}

// State is the widget state.
type State string

const (
	StateIdle      State = "idle"
	StateLocating  State = "locating"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateError     State = "error"
	StateCityInput State = "city_input"
)

// Conditions are the raw current readings returned by a Provider.
type Conditions struct {
	TempC        float64
	ApparentC    float64
	Humidity     int
	WeatherCode  int
	ObservedTime string
}

// GeocodeResult is the best match for a place name.
type GeocodeResult struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   string
	Admin1    string
}

// Provider is the weather and geocoding data source.
type Provider interface {
	// GeocodeCity resolves a place name. It returns ErrGeocodeNotFound when
	// nothing matches.
	GeocodeCity(ctx context.Context, name string) (*GeocodeResult, error)

	// CurrentConditions fetches current readings for a coordinate pair.
	CurrentConditions(ctx context.Context, lat, lon float64) (*Conditions, error)

	// Name returns the provider name for logging.
	Name() string
}

// Position is a device position fix.
type Position struct {
	Lat       float64
	Lon       float64
	Timestamp time.Time
}

// PositionOptions bound a single geolocation request.
type PositionOptions struct {
	// Timeout caps how long a fix may take.
	Timeout time.Duration

	// MaximumAge is the oldest cached fix that may be returned.
	MaximumAge time.Duration
}

// DefaultPositionOptions are the options used by the widget.
var DefaultPositionOptions = PositionOptions{
	Timeout:    10 * time.Second,
	MaximumAge: 5 * time.Minute,
}

// Locator is a single-shot geolocation capability. Any failure, including a
// timeout, should be reported as (or wrap) ErrGeolocationDenied.
type Locator interface {
	Locate(ctx context.Context, opts PositionOptions) (Position, error)
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
