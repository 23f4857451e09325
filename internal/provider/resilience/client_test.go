package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningdash/morningdash/internal/provider/resilience"
)

const forecastBody = `{"current":{"temperature_2m":4.2,"relative_humidity_2m":77,"weather_code":3}}`

// flakyUpstream answers the first failures requests with status and every
// later one with the forecast body.
func flakyUpstream(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= failures {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func neverTrip(name string) *resilience.CircuitBreakerConfig {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	return &cb
}

func fastClient(name string, retries uint64) *resilience.Client {
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		CircuitBreaker:  neverTrip(name),
	})
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		status     int
		retries    uint64
		wantStatus int
		wantHits   int32
	}{
		{"first attempt succeeds", 0, http.StatusServiceUnavailable, 3, http.StatusOK, 1},
		{"recovers after two 503s", 2, http.StatusServiceUnavailable, 3, http.StatusOK, 3},
		{"502 exhausts retries", 10, http.StatusBadGateway, 2, http.StatusBadGateway, 3},
		{"no retries", 10, http.StatusInternalServerError, resilience.NoRetries, http.StatusInternalServerError, 1},
		{"404 not retried", 10, http.StatusNotFound, 3, http.StatusNotFound, 1},
		{"429 not retried", 10, http.StatusTooManyRequests, 3, http.StatusTooManyRequests, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := flakyUpstream(t, tt.failures, tt.status)
			client := fastClient("open-meteo-forecast", tt.retries)

			resp, err := client.Get(context.Background(), srv.URL+"/v1/forecast")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestClient_SuccessBodyIsReadable(t *testing.T) {
	srv, _ := flakyUpstream(t, 1, http.StatusServiceUnavailable)
	client := fastClient("open-meteo-forecast", 3)

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, forecastBody, string(body))
}

func TestClient_BreakerOpensAndShortCircuits(t *testing.T) {
	srv, hits := flakyUpstream(t, 100, http.StatusInternalServerError)

	cb := resilience.DefaultCircuitBreakerConfig("open-meteo-geocoding")
	cb.Timeout = time.Minute
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "open-meteo-geocoding",
		MaxRetries:     resilience.NoRetries,
		CircuitBreaker: &cb,
	})

	for i := 0; i < 5; i++ {
		resp, err := client.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	require.Equal(t, int32(5), hits.Load())

	resp, err := client.Get(context.Background(), srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), hits.Load(), "open breaker must not reach the upstream")
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := resilience.NewClient(resilience.ClientConfig{
		Name:           "ip-geolocation",
		Timeout:        50 * time.Millisecond,
		MaxRetries:     resilience.NoRetries,
		CircuitBreaker: neverTrip("ip-geolocation"),
	})

	resp, err := client.Get(context.Background(), srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestClient_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("ip-geolocation"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := client.Get(ctx, srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
}

func TestClient_GetSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "morningdash/test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := resilience.DefaultClientConfig("open-meteo-forecast")
	cfg.UserAgent = "morningdash/test"
	client := resilience.NewClient(cfg)

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open-meteo-forecast", client.Name())
}

func TestClient_ExplicitUserAgentWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kiosk/2", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := resilience.DefaultClientConfig("ip-geolocation")
	cfg.UserAgent = "morningdash/test"
	client := resilience.NewClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "kiosk/2")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDefaults(t *testing.T) {
	cfg := resilience.DefaultClientConfig("open-meteo-forecast")
	assert.Equal(t, "open-meteo-forecast", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.MaxInterval)
	require.NotNil(t, cfg.CircuitBreaker)

	cb := *cfg.CircuitBreaker
	assert.Equal(t, "open-meteo-forecast", cb.Name)
	assert.Equal(t, uint32(1), cb.MaxRequests)
	assert.Equal(t, time.Minute, cb.Timeout)
	assert.NotNil(t, cb.ReadyToTrip)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		requests, failures uint32
		want               bool
	}{
		{4, 4, false},
		{5, 5, true},
		{10, 4, false},
		{10, 5, true},
	}
	for _, tt := range tests {
		got := resilience.DefaultReadyToTrip(gobreaker.Counts{Requests: tt.requests, TotalFailures: tt.failures})
		assert.Equal(t, tt.want, got, "requests=%d failures=%d", tt.requests, tt.failures)
	}
}

func TestStatusErrors(t *testing.T) {
	assert.Equal(t, "server error: Bad Gateway", (&resilience.ServerError{StatusCode: http.StatusBadGateway}).Error())
	assert.Equal(t, "client error: Not Found", (&resilience.ClientError{StatusCode: http.StatusNotFound}).Error())
}
