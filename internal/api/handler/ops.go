// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/api/response"
	"github.com/morningdash/morningdash/internal/provider/resilience"
)

// readyTimeout bounds the store ping in readiness checks.
const readyTimeout = 2 * time.Second

// Pinger checks that a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// StoreName labels the store subsystem in status output.
	StoreName string
	Store     Pinger

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	storeName string
	store     Pinger
	registry  *resilience.Registry
	logger    zerolog.Logger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Registry == nil {
		cfg.Registry = resilience.NewRegistry()
	}
	if cfg.StoreName == "" {
		cfg.StoreName = "store"
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		storeName: cfg.StoreName,
		store:     cfg.Store,
		registry:  cfg.Registry,
		logger:    cfg.Logger,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - the store must answer a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingStore(r.Context()); err != nil {
		h.logger.Warn().Err(err).Str("store", h.storeName).Msg("readiness check failed")
		health := models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{h.storeName: err.Error()},
		}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - store and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	storeStatus := models.SubsystemStatus{Name: h.storeName, Status: models.HealthStatusOK}
	if err := h.pingStore(r.Context()); err != nil {
		detail := err.Error()
		storeStatus.Status = models.HealthStatusFail
		storeStatus.Detail = &detail
	}

	providers := make([]models.ProviderStatus, 0, h.registry.ProviderCount())
	for _, ph := range h.registry.GetAllHealth() {
		providers = append(providers, providerStatus(ph))
	}

	overall := models.HealthStatusOK
	switch {
	case storeStatus.Status == models.HealthStatusFail:
		overall = models.HealthStatusFail
	case h.registry.Status() != resilience.StatusHealthy:
		overall = models.HealthStatusDegraded
	}

	status := models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{storeStatus},
		Providers:  providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return h.store.Ping(ctx)
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       models.HealthStatusOK,
		CircuitState: ph.CircuitState.String(),
		Requests:     ph.Counts.Requests,
		Failures:     ph.Counts.ConsecutiveFailures,
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
