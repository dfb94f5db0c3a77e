// Package handler exposes zone monitoring over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"visitid/internal/geofence"
	"visitid/internal/platform/metrics"
	"visitid/internal/platform/middleware"
	"visitid/internal/transport/http/shared"
	dErrors "visitid/pkg/domain-errors"
)

// Service defines the monitor operations the HTTP layer needs.
type Service interface {
	SetZone(ctx context.Context, id geofence.ZoneID) (geofence.Status, error)
	Current(ctx context.Context) geofence.Status
}

// Handler handles geofence endpoints.
type Handler struct {
	logger  *slog.Logger
	monitor Service
	zones   *geofence.Registry
	metrics *metrics.Metrics
}

func New(
	monitor Service,
	zones *geofence.Registry,
	logger *slog.Logger,
	metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		monitor: monitor,
		zones:   zones,
		metrics: metrics,
	}
}

// Register mounts the geofence routes. None require a session: the monitor
// tracks the shared demo position, not per-visitor state.
func (h *Handler) Register(r chi.Router) {
	geofenceRouter := chi.NewRouter()
	geofenceRouter.Use(middleware.Recovery(h.logger))
	geofenceRouter.Use(middleware.RequestID)
	geofenceRouter.Use(middleware.Logger(h.logger))
	geofenceRouter.Use(middleware.Timeout(10 * time.Second))
	geofenceRouter.Use(middleware.ContentTypeJSON)
	geofenceRouter.Use(middleware.LatencyMiddleware(h.metrics))

	geofenceRouter.Post("/zone", h.handleSetZone)
	geofenceRouter.Get("/status", h.handleStatus)
	geofenceRouter.Get("/zones", h.handleListZones)

	r.Mount("/geofence", geofenceRouter)
}

type setZoneRequest struct {
	ZoneID geofence.ZoneID `json:"zoneId"`
}

func (h *Handler) handleSetZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req setZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ZoneID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "zoneId is required"))
		return
	}

	status, err := h.monitor.SetZone(ctx, req.ZoneID)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnknownZone) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "zone transition failed",
			"request_id", requestID,
			"zone_id", string(req.ZoneID),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "zone transition failed"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.monitor.Current(r.Context()))
}

func (h *Handler) handleListZones(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"zones": h.zones.All(),
	})
}
