package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while its
// breaker is open or half-open and saturated.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// NoRetries disables retrying when set as ClientConfig.MaxRetries.
const NoRetries = ^uint64(0)

const (
	defaultTimeout         = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures a Client. Zero durations and a zero MaxRetries
// fall back to the defaults returned by DefaultClientConfig.
type ClientConfig struct {
	// Name is the upstream name used for the breaker and in /v1/ops/status,
	// e.g. "open-meteo-forecast" or "ip-geolocation".
	Name string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// MaxRetries counts attempts after the first. Use NoRetries for none.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	CircuitBreaker *CircuitBreakerConfig
	Registry       *Registry
	UserAgent      string
	Logger         zerolog.Logger
}

// DefaultClientConfig returns the settings used for every dashboard upstream.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         defaultTimeout,
		MaxRetries:      defaultMaxRetries,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		CircuitBreaker:  &cb,
	}
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.MaxRetries {
	case 0:
		cfg.MaxRetries = defaultMaxRetries
	case NoRetries:
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	return cfg
}

// Client wraps an http.Client with a breaker and bounded exponential retry.
// 5xx responses and transport errors are retried; 4xx responses are not.
type Client struct {
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry
	logger   zerolog.Logger
	config   ClientConfig
}

// NewClient builds a Client and registers it with cfg.Registry when set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	cb := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cb = *cfg.CircuitBreaker
	}
	if cb.OnStateChange == nil {
		logger := cfg.Logger
		cb.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream breaker changed state")
		}
	}

	c := &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker[*http.Response](cb.settings()), //nolint:bodyclose // type param, not response
		registry: cfg.Registry,
		logger:   cfg.Logger.With().Str("upstream", cfg.Name).Logger(),
		config:   cfg,
	}
	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// Get issues a JSON GET for url.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(req)
}

// Do sends req using its own context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transient failures until MaxRetries is
// spent or ctx ends. When every attempt got a 5xx, the last response is
// returned with a nil error so the caller can read its status and body.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var (
		last    *http.Response
		attempt int
	)
	keep := func(resp *http.Response) {
		if last != nil {
			last.Body.Close()
		}
		last = resp
	}

	err := backoff.Retry(func() error {
		attempt++
		resp, err := c.attempt(ctx, req)
		if err == nil {
			keep(resp)
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return backoff.Permanent(err)
		}
		if resp != nil {
			keep(resp)
		}
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("upstream attempt failed")
		return err
	}, c.backOff(ctx))

	switch {
	case err != nil:
		c.recordFailure(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	case last.StatusCode >= http.StatusBadRequest:
		c.recordFailure(&ClientError{StatusCode: last.StatusCode})
	default:
		c.recordSuccess()
	}
	return last, nil
}

// attempt performs one round trip through the breaker. A 5xx comes back as
// both a response and a *ServerError so it counts against the breaker.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
		r, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return resp, err
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// CircuitBreakerState returns the breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker counters for the current window.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError is an upstream 5xx.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// ClientError is an upstream 4xx. It is recorded for health reporting but
// never retried.
type ClientError struct {
	StatusCode int
}

func (e *ClientError) Error() string {
	return "client error: " + http.StatusText(e.StatusCode)
}
