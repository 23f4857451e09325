// Package openmeteo implements weather.Provider against the Open-Meteo
// forecast and geocoding APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/morningdash/morningdash/internal/provider/resilience"
	"github.com/morningdash/morningdash/internal/telemetry"
	"github.com/morningdash/morningdash/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo"

	// DefaultForecastURL is the Open-Meteo forecast endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// DefaultGeocodingURL is the Open-Meteo geocoding search endpoint.
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

	currentFields = "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code"

	tracerName = "github.com/morningdash/morningdash/internal/weather/openmeteo"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// ForecastURL overrides DefaultForecastURL.
	ForecastURL string

	// GeocodingURL overrides DefaultGeocodingURL.
	GeocodingURL string

	// ForecastClient and GeocodingClient are the HTTP clients to use (optional).
	// If nil, resilient clients with defaults are created and registered
	// with Registry.
	ForecastClient  *resilience.Client
	GeocodingClient *resilience.Client

	// Registry tracks upstream health (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	forecastURL  string
	geocodingURL string
	forecast     *resilience.Client
	geocoding    *resilience.Client
	logger       zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}

	geocodingURL := cfg.GeocodingURL
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
	}

	forecast := cfg.ForecastClient
	if forecast == nil {
		forecast = newHTTPClient(ProviderName+"-forecast", cfg)
	}

	geocoding := cfg.GeocodingClient
	if geocoding == nil {
		geocoding = newHTTPClient(ProviderName+"-geocoding", cfg)
	}

	return &Client{
		forecastURL:  forecastURL,
		geocodingURL: geocodingURL,
		forecast:     forecast,
		geocoding:    geocoding,
		logger:       cfg.Logger,
	}
}

func newHTTPClient(name string, cfg ClientConfig) *resilience.Client {
	rc := resilience.DefaultClientConfig(name)
	rc.Registry = cfg.Registry
	rc.Logger = cfg.Logger
	return resilience.NewClient(rc)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GeocodeCity resolves a place name to its best match.
func (c *Client) GeocodeCity(ctx context.Context, name string) (result *weather.GeocodeResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "openmeteo.GeocodeCity",
		attribute.String("weather.city", name),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var resp geocodingResponse
	if err := c.getJSON(ctx, c.geocoding, c.geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}

	if len(resp.Results) == 0 {
		return nil, weather.ErrGeocodeNotFound
	}

	r := resp.Results[0]
	if r.Latitude == nil || r.Longitude == nil {
		return nil, fmt.Errorf("%w: geocoding %q: result missing coordinates", weather.ErrFetchFailed, name)
	}

	c.logger.Debug().
		Str("city", name).
		Str("match", r.Name).
		Str("country", r.Country).
		Msg("geocoded city")

	return &weather.GeocodeResult{
		Name:      r.Name,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Country:   r.Country,
		Admin1:    r.Admin1,
	}, nil
}

// CurrentConditions fetches current readings for a coordinate pair.
func (c *Client) CurrentConditions(ctx context.Context, lat, lon float64) (conditions *weather.Conditions, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "openmeteo.CurrentConditions",
		attribute.Float64("weather.lat", lat),
		attribute.Float64("weather.lon", lon),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", currentFields)
	q.Set("temperature_unit", "celsius")
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")

	var resp forecastResponse
	if err := c.getJSON(ctx, c.forecast, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	if resp.Current == nil {
		return nil, fmt.Errorf("%w: forecast: response missing current", weather.ErrFetchFailed)
	}
	if resp.Current.Temperature == nil || resp.Current.WeatherCode == nil {
		return nil, fmt.Errorf("%w: forecast: current missing temperature or weather code", weather.ErrFetchFailed)
	}

	return resp.Current.toConditions(), nil
}

// getJSON fetches endpoint and decodes a 2xx JSON body into out. Every failure
// wraps weather.ErrFetchFailed.
func (c *Client) getJSON(ctx context.Context, client *resilience.Client, endpoint string, out any) error {
	resp, err := client.Get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", weather.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: unexpected status code: %d", weather.ErrFetchFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", weather.ErrFetchFailed, err)
	}
	return nil
}

func (cb *currentBlock) toConditions() *weather.Conditions {
	return &weather.Conditions{
		TempC:        *cb.Temperature,
		ApparentC:    cb.ApparentTemperature,
		Humidity:     int(math.Round(cb.RelativeHumidity)),
		WeatherCode:  *cb.WeatherCode,
		ObservedTime: cb.Time,
	}
}
