package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/morningdash/morningdash/internal/api/middleware"
)

// recordSpans installs a recording tracer provider. Call it before building
// the handler; Tracing resolves its tracer at construction.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

// serveOne serves req through h and returns the single ended span.
func serveOne(t *testing.T, sr *tracetest.SpanRecorder, h http.Handler, req *http.Request) sdktrace.ReadOnlySpan {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_ServerSpan(t *testing.T) {
	sr := recordSpans(t)
	h := middleware.Tracing("morningdash")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		_, _ = w.Write([]byte("{}"))
	}))

	span := serveOne(t, sr, h, httptest.NewRequest(http.MethodGet, "/v1/weather?units=c", http.NoBody))

	assert.Equal(t, "GET /v1/weather", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	code, ok := attr(span, "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), code.AsInt64())

	query, ok := attr(span, "url.query")
	require.True(t, ok)
	assert.Equal(t, "units=c", query.AsString())

	size, ok := attr(span, "http.response.body.size")
	require.True(t, ok)
	assert.Equal(t, int64(2), size.AsInt64())
}

func TestTracing_ContinuesCallerTrace(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/weather/refresh", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	sr := recordSpans(t)
	span := serveOne(t, sr, middleware.Tracing("morningdash")(status(http.StatusOK)), req)

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
}

func TestTracing_StatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want codes.Code
	}{
		{http.StatusNotFound, codes.Unset},
		{http.StatusTooManyRequests, codes.Unset},
		{http.StatusInternalServerError, codes.Error},
		{http.StatusServiceUnavailable, codes.Error},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			sr := recordSpans(t)
			span := serveOne(t, sr, middleware.Tracing("morningdash")(status(tt.code)),
				httptest.NewRequest(http.MethodGet, "/v1/quote", http.NoBody))

			assert.Equal(t, tt.want, span.Status().Code)
			code, _ := attr(span, "http.response.status_code")
			assert.Equal(t, int64(tt.code), code.AsInt64())
		})
	}
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/clock", http.NoBody)
	req.Header.Set("X-Request-Id", "req-trace-3")

	sr := recordSpans(t)
	span := serveOne(t, sr, middleware.RequestID(middleware.Tracing("morningdash")(status(http.StatusOK))), req)

	id, ok := attr(span, "request.id")
	require.True(t, ok)
	assert.Equal(t, "req-trace-3", id.AsString())
}

func TestTracing_NamesSpanByRoute(t *testing.T) {
	sr := recordSpans(t)
	r := chi.NewRouter()
	r.Use(middleware.Tracing("morningdash"))
	r.Get("/deck/*", status(http.StatusOK))

	span := serveOne(t, sr, r, httptest.NewRequest(http.MethodGet, "/deck/intro.html", http.NoBody))

	assert.Equal(t, "GET /deck/*", span.Name())
	route, ok := attr(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/deck/*", route.AsString())
}
