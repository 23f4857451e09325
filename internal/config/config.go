// Package config loads dashboard configuration. A YAML file (optional) is
// loaded with koanf, environment variables override it, and a .env file in the
// working directory is read into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the dashboard.
type Config struct {
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	Env      string `koanf:"env" validate:"required"`
	LogLevel string `koanf:"log_level" validate:"oneof=trace debug info warn error"`

	Store       StoreConfig       `koanf:"store"`
	Database    DatabaseConfig    `koanf:"database"`
	Geolocation GeolocationConfig `koanf:"geolocation"`
	Weather     WeatherConfig     `koanf:"weather"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	PubSub      PubSubConfig      `koanf:"pubsub"`

	// DeckDir is the static deck root. Empty disables /deck.
	DeckDir string `koanf:"deck_dir"`

	// AuthSigningKey enables operator tokens on mutating endpoints when set.
	AuthSigningKey string `koanf:"auth_signing_key" validate:"omitempty,min=32"`

	// Timezone decides the clock face and the quote day boundary.
	Timezone string `koanf:"timezone" validate:"required"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `koanf:"require_tls"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend       string `koanf:"backend" validate:"oneof=memory sqlite redis postgres"`
	SQLitePath    string `koanf:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr     string `koanf:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"min=0"`
}

// DatabaseConfig is the PostgreSQL connection used by the postgres backend.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// GeolocationConfig selects how the server finds its position.
type GeolocationConfig struct {
	Mode  string  `koanf:"mode" validate:"oneof=disabled static ip"`
	Lat   float64 `koanf:"lat" validate:"min=-90,max=90"`
	Lon   float64 `koanf:"lon" validate:"min=-180,max=180"`
	IPURL string  `koanf:"ip_url" validate:"omitempty,url"`
}

// WeatherConfig overrides the upstream endpoints.
type WeatherConfig struct {
	ForecastURL  string        `koanf:"forecast_url" validate:"omitempty,url"`
	GeocodingURL string        `koanf:"geocoding_url" validate:"omitempty,url"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"min=0"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
	SampleRatio  float64 `koanf:"sample_ratio" validate:"min=0,max=1"`
}

// PubSubConfig configures the refresh trigger. Empty ProjectID disables it.
type PubSubConfig struct {
	ProjectID    string `koanf:"project_id"`
	Subscription string `koanf:"subscription" validate:"required_with=ProjectID"`
}

// Default values for non-secret configuration.
const (
	DefaultPort         = 8080
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultStoreBackend = "memory"
	DefaultSQLitePath   = "dashboard.db"
	DefaultDBPort       = 5432
	DefaultDBSSLMode    = "disable"
	DefaultGeoMode      = "disabled"
	DefaultIPURL        = "http://ip-api.com/json"
	DefaultDeckDir      = "deck"
	DefaultTimezone     = "Local"
	DefaultFetchTimeout = 30 * time.Second
)

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over file values. It returns the
// config and every problem found (empty if valid). A config file that cannot
// be loaded is reported as the only error.
func Load(configFilePath string) (*Config, []error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	intVal := func(envKey, koanfKey string, def int) int {
		v, err := envInt(envKey, k, koanfKey, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatVal := func(envKey, koanfKey string) float64 {
		v, err := envFloat(envKey, k, koanfKey)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVal := func(envKey, koanfKey string) bool {
		v, err := envBool(envKey, k, koanfKey)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durationVal := func(envKey, koanfKey string, def time.Duration) time.Duration {
		v, err := envDuration(envKey, k, koanfKey, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:     intVal("APP_PORT", "port", DefaultPort),
		Env:      envString("APP_ENV", k, "env", DefaultEnv),
		LogLevel: strings.ToLower(envString("LOG_LEVEL", k, "log_level", DefaultLogLevel)),
		Store: StoreConfig{
			Backend:       envString("STORE_BACKEND", k, "store.backend", DefaultStoreBackend),
			SQLitePath:    envString("SQLITE_PATH", k, "store.sqlite_path", DefaultSQLitePath),
			RedisAddr:     envString("REDIS_ADDR", k, "store.redis_addr", ""),
			RedisPassword: envString("REDIS_PASSWORD", k, "store.redis_password", ""),
			RedisDB:       intVal("REDIS_DB", "store.redis_db", 0),
		},
		Database: DatabaseConfig{
			Host:     envString("DB_HOST", k, "database.host", "localhost"),
			Port:     intVal("DB_PORT", "database.port", DefaultDBPort),
			User:     envString("DB_USER", k, "database.user", "postgres"),
			Password: envString("DB_PASSWORD", k, "database.password", ""),
			Name:     envString("DB_NAME", k, "database.name", "morningdash"),
			SSLMode:  envString("DB_SSL_MODE", k, "database.ssl_mode", DefaultDBSSLMode),
		},
		Geolocation: GeolocationConfig{
			Mode:  envString("GEO_MODE", k, "geolocation.mode", DefaultGeoMode),
			Lat:   floatVal("GEO_LAT", "geolocation.lat"),
			Lon:   floatVal("GEO_LON", "geolocation.lon"),
			IPURL: envString("GEO_IP_URL", k, "geolocation.ip_url", DefaultIPURL),
		},
		Weather: WeatherConfig{
			ForecastURL:  envString("WEATHER_FORECAST_URL", k, "weather.forecast_url", ""),
			GeocodingURL: envString("WEATHER_GEOCODING_URL", k, "weather.geocoding_url", ""),
			FetchTimeout: durationVal("WEATHER_FETCH_TIMEOUT", "weather.fetch_timeout", DefaultFetchTimeout),
		},
		Telemetry: TelemetryConfig{
			Enabled:      boolVal("OTEL_ENABLED", "telemetry.enabled"),
			OTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", k, "telemetry.otlp_endpoint", ""),
			SampleRatio:  floatVal("OTEL_TRACES_SAMPLER_ARG", "telemetry.sample_ratio"),
		},
		PubSub: PubSubConfig{
			ProjectID:    envString("PUBSUB_PROJECT_ID", k, "pubsub.project_id", ""),
			Subscription: envString("PUBSUB_SUBSCRIPTION", k, "pubsub.subscription", ""),
		},
		DeckDir:        envString("DECK_DIR", k, "deck_dir", DefaultDeckDir),
		AuthSigningKey: envString("AUTH_SIGNING_KEY", k, "auth_signing_key", ""),
		Timezone:       envString("TIMEZONE", k, "timezone", DefaultTimezone),
		RequireTLS:     boolVal("REQUIRE_TLS", "require_tls"),
	}

	errs = append(errs, cfg.Validate()...)
	return cfg, errs
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and returns one error per problem.
func (c *Config) Validate() []error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []error{err}
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}
	return errs
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == DefaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// envString returns the environment variable value if set, otherwise the
// koanf value, or def.
func envString(envKey string, k *koanf.Koanf, koanfKey, def string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := k.String(koanfKey); val != "" {
		return val
	}
	return def
}

func envInt(envKey string, k *koanf.Koanf, koanfKey string, def int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return def, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return n, nil
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return def, nil
}

func envFloat(envKey string, k *koanf.Koanf, koanfKey string) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", envKey, err)
		}
		return f, nil
	}
	return k.Float64(koanfKey), nil
}

func envBool(envKey string, k *koanf.Koanf, koanfKey string) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return false, fmt.Errorf("%s must be a boolean, got %q", envKey, val)
		}
	}
	return k.Bool(koanfKey), nil
}

func envDuration(envKey string, k *koanf.Koanf, koanfKey string, def time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return def, fmt.Errorf("%s must be a duration: %w", envKey, err)
		}
		return d, nil
	}
	if k.Exists(koanfKey) {
		return k.Duration(koanfKey), nil
	}
	return def, nil
}
