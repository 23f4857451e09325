package geolocation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/provider/resilience"
	"github.com/morningdash/morningdash/internal/weather"
)

// Config selects and configures a locator.
type Config struct {
	Mode     string
	Lat      float64
	Lon      float64
	IPURL    string
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// New builds the locator for cfg.Mode. Positioning modes are wrapped in Cached.
func New(cfg Config) (weather.Locator, error) {
	switch cfg.Mode {
	case ModeDisabled, "":
		return Disabled{}, nil
	case ModeStatic:
		return NewCached(Static{Lat: cfg.Lat, Lon: cfg.Lon}, nil, cfg.Logger), nil
	case ModeIP:
		return NewCached(NewIPLocator(IPLocatorConfig{
			URL:      cfg.IPURL,
			Registry: cfg.Registry,
			Logger:   cfg.Logger,
		}), nil, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown geolocation mode %q", cfg.Mode)
	}
}
