package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningdash/morningdash/internal/api/middleware"
	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/auth"
)

// sender returns a function that sends one request from remote through h
// and reports the status.
func sender(h http.Handler, method, path string, headers map[string]string) func(remote string) *httptest.ResponseRecorder {
	return func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, http.NoBody)
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
}

func TestRateLimitByIP(t *testing.T) {
	limit := middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}
	send := sender(middleware.RateLimitByIP(limit)(okHandler()), http.MethodGet, "/v1/weather", nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1:5000").Code, "request %d", i+1)
	}

	blocked := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code, "other clients keep their own budget")
}

func TestRateLimit_RetryAfterFollowsWindow(t *testing.T) {
	limit := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 10 * time.Second}
	send := sender(middleware.RateLimitByIP(limit)(okHandler()), http.MethodGet, "/v1/clock", nil)

	send("198.51.100.7:80")
	assert.Equal(t, "10", send("198.51.100.7:80").Header().Get("Retry-After"))
}

func TestRateLimitByOperator(t *testing.T) {
	limit := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}

	t.Run("shared across addresses", func(t *testing.T) {
		svc, err := auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey})
		require.NoError(t, err)
		token, _, err := svc.GenerateAccessToken("kiosk", time.Hour, auth.ScopeWeatherWrite)
		require.NoError(t, err)

		h := middleware.Auth(svc, auth.ScopeWeatherWrite)(middleware.RateLimitByOperator(limit)(okHandler()))
		send := sender(h, http.MethodPost, "/v1/weather/refresh", map[string]string{"Authorization": "Bearer " + token})

		assert.Equal(t, http.StatusOK, send("192.168.1.1:1").Code)
		assert.Equal(t, http.StatusOK, send("192.168.1.2:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.3:1").Code)
	})

	t.Run("falls back to address without auth", func(t *testing.T) {
		send := sender(middleware.RateLimitByOperator(limit)(okHandler()), http.MethodPost, "/v1/weather/retry", nil)

		assert.Equal(t, http.StatusOK, send("10.1.0.1:1").Code)
		assert.Equal(t, http.StatusOK, send("10.1.0.1:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("10.1.0.1:1").Code)
		assert.Equal(t, http.StatusOK, send("10.1.0.2:1").Code)
	})
}

func TestRateLimit_ProblemBody(t *testing.T) {
	limit := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	h := middleware.RequestID(middleware.RateLimitByIP(limit)(okHandler()))
	send := sender(h, http.MethodGet, "/v1/quote", map[string]string{"X-Request-Id": "req-quote-1"})

	send("203.0.113.1:443")
	rec := send("203.0.113.1:443")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.KindTooManyRequests.Type, problem.Type)
	assert.Equal(t, "/v1/quote", problem.Instance)
	assert.Equal(t, "req-quote-1", problem.TraceID)
	assert.Contains(t, problem.Detail, "Rate limit exceeded")
}

func TestRateLimitBudgets(t *testing.T) {
	for name, tt := range map[string]struct {
		cfg  middleware.RateLimitConfig
		want int
	}{
		"fetch":    {middleware.FetchRateLimit, 10},
		"stream":   {middleware.StreamRateLimit, 30},
		"standard": {middleware.StandardRateLimit, 100},
	} {
		assert.Equal(t, tt.want, tt.cfg.RequestLimit, name)
		assert.Equal(t, time.Minute, tt.cfg.WindowLength, name)
	}
}
