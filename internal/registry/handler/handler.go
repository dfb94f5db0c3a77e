// Package handler exposes the registry over HTTP. It delegates to the gateway
// and owns no business logic.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"visitid/internal/geofence"
	"visitid/internal/platform/metrics"
	"visitid/internal/platform/middleware"
	"visitid/internal/registry/gateway"
	"visitid/internal/registry/models"
	"visitid/internal/transport/http/shared"
	dErrors "visitid/pkg/domain-errors"
)

// Service defines the registry operations the HTTP layer needs.
type Service interface {
	SubmitRegistration(ctx context.Context, sessionID string, fields models.RegistrationFields) (models.Receipt, error)
	FetchMyRecord(ctx context.Context, owner models.OwnerAddress) (*models.IdentityRecord, error)
	FetchDashboard(ctx context.Context, limit int) ([]gateway.DashboardEntry, error)
	Stats(ctx context.Context) (geofence.Stats, error)
}

// Handler handles registry endpoints.
type Handler struct {
	logger       *slog.Logger
	registry     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(
	registry Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		registry:     registry,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the registry routes. Register and me require a session
// token; the dashboard is public read-only display data.
func (h *Handler) Register(r chi.Router) {
	registryRouter := chi.NewRouter()
	registryRouter.Use(middleware.Recovery(h.logger))
	registryRouter.Use(middleware.RequestID)
	registryRouter.Use(middleware.Logger(h.logger))
	registryRouter.Use(middleware.Timeout(30 * time.Second))
	registryRouter.Use(middleware.ContentTypeJSON)
	registryRouter.Use(middleware.LatencyMiddleware(h.metrics))

	registryRouter.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		authed.Post("/register", h.handleRegister)
		authed.Get("/me", h.handleMyRecord)
	})
	registryRouter.Get("/dashboard", h.handleDashboard)

	r.Mount("/registry", registryRouter)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	sessionID := middleware.GetSessionID(ctx)
	if sessionID == "" {
		h.logger.ErrorContext(ctx, "session missing from context despite auth middleware",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var fields models.RegistrationFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	receipt, err := h.registry.SubmitRegistration(ctx, sessionID, fields)
	if err != nil {
		switch {
		case dErrors.Is(err, dErrors.CodeValidation),
			dErrors.Is(err, dErrors.CodeAlreadyRegistered),
			dErrors.Is(err, dErrors.CodeConflict),
			dErrors.Is(err, dErrors.CodeUserCancelled),
			dErrors.Is(err, dErrors.CodeProviderUnavailable),
			dErrors.Is(err, dErrors.CodeNetwork):
			h.logger.WarnContext(ctx, "registration rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
		default:
			h.logger.ErrorContext(ctx, "registration failed",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "registration failed"))
		}
		return
	}

	shared.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleMyRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	owner := middleware.GetOwner(ctx)
	if owner == "" {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	record, err := h.registry.FetchMyRecord(ctx, models.OwnerAddress(owner))
	if err != nil {
		h.logger.ErrorContext(ctx, "record lookup failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "record lookup failed"))
		return
	}
	if record == nil {
		// Not registered yet is an answer, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.registry.FetchDashboard(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard assembly failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "dashboard unavailable"))
		return
	}

	stats, err := h.registry.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard stats failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "dashboard unavailable"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"stats":   stats,
	})
}
