package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningdash/morningdash/internal/api/handler"
	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/provider/resilience"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.2.3", BuildTime: "2026-02-16"})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.2.3", health.Details["version"])
}

func TestOpsHandler_ReadinessCheck(t *testing.T) {
	t.Run("store reachable", func(t *testing.T) {
		h := handler.NewOpsHandler(handler.OpsConfig{Store: fakePinger{}, Logger: zerolog.Nop()})

		rec := httptest.NewRecorder()
		h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store down", func(t *testing.T) {
		h := handler.NewOpsHandler(handler.OpsConfig{
			StoreName: "redis",
			Store:     fakePinger{err: errors.New("connection refused")},
			Logger:    zerolog.Nop(),
		})

		rec := httptest.NewRecorder()
		h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var health models.Health
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, "connection refused", health.Details["redis"])
	})
}

func TestOpsHandler_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = resilience.NewClient(resilience.ClientConfig{Name: "open-meteo-forecast", Registry: registry})
	registry.RecordFailure("open-meteo-forecast", errors.New("status 503"))

	h := handler.NewOpsHandler(handler.OpsConfig{
		StoreName: "sqlite",
		Store:     fakePinger{},
		Registry:  registry,
		Logger:    zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "sqlite", status.Subsystems[0].Name)

	require.Len(t, status.Providers, 1)
	p := status.Providers[0]
	assert.Equal(t, "open-meteo-forecast", p.Provider)
	assert.Equal(t, models.HealthStatusOK, p.Status)
	assert.Equal(t, "closed", p.CircuitState)
	require.NotNil(t, p.LastFailureAt)
	require.NotNil(t, p.Message)
	assert.Equal(t, "status 503", *p.Message)
}

func TestOpsHandler_SystemStatus_StoreDown(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Store:  fakePinger{err: errors.New("timeout")},
		Logger: zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusFail, status.Status)
	assert.Equal(t, models.HealthStatusFail, status.Subsystems[0].Status)
	assert.Empty(t, status.Providers)
}
