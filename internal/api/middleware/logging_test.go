package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/morningdash/morningdash/internal/api/middleware"
)

// accessLog serves req through wrap(Logger(h)) and returns the decoded line.
func accessLog(t *testing.T, wrap func(http.Handler) http.Handler, h http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(h)
	if wrap != nil {
		handler = wrap(handler)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	return line
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) }
}

func TestLogger_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/quote", http.NoBody)
	req.Header.Set("User-Agent", "kiosk/1.0")

	line := accessLog(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text":"Begin anywhere."}`))
	}, req)

	assert.Equal(t, "request completed", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/v1/quote", line["path"])
	assert.Equal(t, "/v1/quote", line["route"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, float64(26), line["bytes"])
	assert.Equal(t, "kiosk/1.0", line["user_agent"])
	assert.Contains(t, line, "duration")
	assert.NotContains(t, line, "trace_id")
}

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		code  int
		level string
	}{
		{http.StatusOK, "info"},
		{http.StatusMovedPermanently, "info"},
		{http.StatusBadRequest, "warn"},
		{http.StatusTooManyRequests, "warn"},
		{http.StatusInternalServerError, "error"},
		{http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			line := accessLog(t, nil, status(tt.code), httptest.NewRequest(http.MethodPost, "/v1/weather/city", http.NoBody))
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, float64(tt.code), line["status"])
		})
	}
}

func TestLogger_ChiRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/deck/*", status(http.StatusOK))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/deck/slides/intro.html", http.NoBody))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/deck/*", line["route"])
	assert.Equal(t, "/deck/slides/intro.html", line["path"])
}

func TestLogger_RequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/clock", http.NoBody)
	req.Header.Set("X-Request-Id", "req-clock-9")

	line := accessLog(t, middleware.RequestID, status(http.StatusOK), req)
	assert.Equal(t, "req-clock-9", line["request_id"])
}

func TestLogger_TraceContext(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	line := accessLog(t, middleware.Tracing("morningdash"), status(http.StatusOK),
		httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody))

	assert.Len(t, line["trace_id"], 32)
	assert.Len(t, line["span_id"], 16)
}
