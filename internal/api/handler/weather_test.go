package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningdash/morningdash/internal/api/handler"
	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/weather"
)

type fakeWidget struct {
	mu     sync.Mutex
	snap   weather.Snapshot
	calls  []string
	cities []string
	ctxErr error
}

func (f *fakeWidget) record(call string, ctx context.Context) weather.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if ctx != nil {
		f.ctxErr = ctx.Err()
	}
	return f.snap
}

func (f *fakeWidget) Snapshot() weather.Snapshot { return f.record("snapshot", nil) }

func (f *fakeWidget) Activate(ctx context.Context) weather.Snapshot { return f.record("activate", ctx) }

func (f *fakeWidget) Retry(ctx context.Context) weather.Snapshot { return f.record("retry", ctx) }

func (f *fakeWidget) Refresh(ctx context.Context) weather.Snapshot { return f.record("refresh", ctx) }

func (f *fakeWidget) SubmitCity(ctx context.Context, city string) (weather.Snapshot, error) {
	if strings.TrimSpace(city) == "" {
		return f.record("city", ctx), weather.ErrEmptyCity
	}
	f.mu.Lock()
	f.cities = append(f.cities, city)
	f.mu.Unlock()
	return f.record("city", ctx), nil
}

var handlerNow = time.Date(2026, time.February, 16, 7, 30, 0, 0, time.UTC)

func loadedWidget() *fakeWidget {
	fetched := handlerNow.Add(-20 * time.Minute)
	env := weather.Envelope{
		Data:    weather.NewReading("Amsterdam", weather.Conditions{TempC: 6.2, Humidity: 88, WeatherCode: 61}, fetched),
		SavedAt: fetched.UnixMilli(),
	}
	return &fakeWidget{snap: weather.Snapshot{
		State:         weather.StateLoaded,
		Reading:       &env,
		NextRefreshAt: fetched.Add(weather.CacheTTL),
		Version:       3,
	}}
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) models.WeatherSnapshot {
	t.Helper()
	var out models.WeatherSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWeatherHandler_GetWeather(t *testing.T) {
	widget := loadedWidget()
	h := handler.NewWeatherHandler(widget, func() time.Time { return handlerNow })

	rec := httptest.NewRecorder()
	h.GetWeather(rec, httptest.NewRequest(http.MethodGet, "/v1/weather", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeSnapshot(t, rec)
	assert.Equal(t, weather.StateLoaded, out.State)
	require.NotNil(t, out.Reading)
	assert.Equal(t, "Amsterdam", out.Reading.LocationName)
	assert.Equal(t, int64(20*60), out.Reading.AgeSeconds)
	assert.Equal(t, uint64(3), out.Version)
}

func TestWeatherHandler_Actions(t *testing.T) {
	tests := []struct {
		name string
		call func(h *handler.WeatherHandler, w http.ResponseWriter, r *http.Request)
		want string
	}{
		{"activate", (*handler.WeatherHandler).Activate, "activate"},
		{"retry", (*handler.WeatherHandler).Retry, "retry"},
		{"refresh", (*handler.WeatherHandler).Refresh, "refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			widget := loadedWidget()
			h := handler.NewWeatherHandler(widget, func() time.Time { return handlerNow })

			rec := httptest.NewRecorder()
			tt.call(h, rec, httptest.NewRequest(http.MethodPost, "/v1/weather/"+tt.name, http.NoBody))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tt.want}, widget.calls)
			assert.Equal(t, weather.StateLoaded, decodeSnapshot(t, rec).State)
		})
	}
}

func TestWeatherHandler_ActionsIgnoreClientCancellation(t *testing.T) {
	widget := loadedWidget()
	h := handler.NewWeatherHandler(widget, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/weather/refresh", http.NoBody).WithContext(ctx)

	h.Refresh(httptest.NewRecorder(), req)

	assert.NoError(t, widget.ctxErr)
}

func TestWeatherHandler_SubmitCity(t *testing.T) {
	widget := &fakeWidget{snap: weather.Snapshot{State: weather.StateCityInput, CityError: weather.CityNotFoundMessage}}
	h := handler.NewWeatherHandler(widget, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/weather/city", strings.NewReader(`{"city":"Atlantis"}`))
	rec := httptest.NewRecorder()
	h.SubmitCity(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Atlantis"}, widget.cities)
	out := decodeSnapshot(t, rec)
	assert.Equal(t, weather.StateCityInput, out.State)
	assert.Equal(t, weather.CityNotFoundMessage, out.CityError)
}

func TestWeatherHandler_SubmitCity_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"malformed", `{"city":`, "invalid JSON body"},
		{"missing", `{}`, "invalid city"},
		{"blank", `{"city":"   "}`, "invalid city"},
		{"too long", `{"city":"` + strings.Repeat("x", 101) + `"}`, "invalid city"},
		{"unknown field", `{"town":"Oslo"}`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			widget := &fakeWidget{}
			h := handler.NewWeatherHandler(widget, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/weather/city", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.SubmitCity(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Contains(t, problem.Detail, tt.detail)
			assert.Empty(t, widget.cities)
		})
	}
}

func TestWeatherHandler_SubmitCity_FieldErrors(t *testing.T) {
	h := handler.NewWeatherHandler(&fakeWidget{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/weather/city", strings.NewReader(`{"city":"`+strings.Repeat("y", 150)+`"}`))
	rec := httptest.NewRecorder()
	h.SubmitCity(rec, req)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "city", problem.Errors[0].Field)
	assert.Equal(t, "MAX", problem.Errors[0].Code)
	assert.Equal(t, "must be at most 100 characters", problem.Errors[0].Message)
}
