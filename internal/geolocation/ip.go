package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/morningdash/morningdash/internal/provider/resilience"
	"github.com/morningdash/morningdash/internal/telemetry"
	"github.com/morningdash/morningdash/internal/weather"
)

// DefaultIPLookupURL is an ip-api.com style JSON endpoint.
const DefaultIPLookupURL = "http://ip-api.com/json"

const tracerName = "github.com/morningdash/morningdash/internal/geolocation"

// IPLocatorConfig holds configuration for IPLocator.
type IPLocatorConfig struct {
	// URL is the lookup endpoint (default: DefaultIPLookupURL).
	URL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Registry tracks upstream health when HTTPClient is nil (optional).
	Registry *resilience.Registry

	// Now stamps the fix (default: time.Now).
	Now func() time.Time

	Logger zerolog.Logger
}

// IPLocator approximates the host position from its public IP address.
type IPLocator struct {
	url    string
	client *resilience.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewIPLocator creates an IP based locator.
func NewIPLocator(cfg IPLocatorConfig) *IPLocator {
	url := cfg.URL
	if url == "" {
		url = DefaultIPLookupURL
	}

	client := cfg.HTTPClient
	if client == nil {
		rc := resilience.DefaultClientConfig("ip-geolocation")
		rc.MaxRetries = resilience.NoRetries
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		client = resilience.NewClient(rc)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &IPLocator{url: url, client: client, now: now, logger: cfg.Logger}
}

type ipLookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	City    string   `json:"city"`
}

// Locate looks up the position. Every failure wraps weather.ErrGeolocationDenied.
func (l *IPLocator) Locate(ctx context.Context, opts weather.PositionOptions) (pos weather.Position, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "geolocation.Locate",
		attribute.String("geolocation.mode", ModeIP),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := l.client.Get(ctx, l.url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return weather.Position{}, fmt.Errorf("%w: timed out", weather.ErrGeolocationDenied)
		}
		return weather.Position{}, fmt.Errorf("%w: %w", weather.ErrGeolocationDenied, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return weather.Position{}, fmt.Errorf("%w: unexpected status code: %d", weather.ErrGeolocationDenied, resp.StatusCode)
	}

	var body ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return weather.Position{}, fmt.Errorf("%w: decoding response: %w", weather.ErrGeolocationDenied, err)
	}
	if body.Status != "" && body.Status != "success" {
		return weather.Position{}, fmt.Errorf("%w: lookup failed: %s", weather.ErrGeolocationDenied, body.Message)
	}
	if body.Lat == nil || body.Lon == nil {
		return weather.Position{}, fmt.Errorf("%w: response missing coordinates", weather.ErrGeolocationDenied)
	}

	l.logger.Info().
		Float64("lat", *body.Lat).
		Float64("lon", *body.Lon).
		Str("city", body.City).
		Msg("located host by IP")

	return weather.Position{Lat: *body.Lat, Lon: *body.Lon, Timestamp: l.now()}, nil
}
