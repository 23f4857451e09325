package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/morningdash/morningdash/internal/api/models"
)

// RateLimitConfig is a fixed-window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets for the dashboard routes.
var (
	// FetchRateLimit covers weather actions that can reach Open-Meteo.
	FetchRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// StreamRateLimit covers WebSocket upgrades on /v1/stream.
	StreamRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit covers read-only JSON endpoints.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits per client address as resolved by chi's RealIP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limiter(httprate.KeyByRealIP)
}

// RateLimitByOperator limits per authenticated operator, or per client
// address when operator auth is disabled.
func RateLimitByOperator(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limiter(func(r *http.Request) (string, error) {
		if operator := GetOperator(r.Context()); operator != "" {
			return "operator:" + operator, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (cfg RateLimitConfig) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Round(time.Second) / time.Second))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; advertise a full window.
			w.Header().Set("Retry-After", retryAfter)
			models.KindTooManyRequests.
				New(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
				At(r.URL.Path).
				Write(w)
		}),
	)
}
