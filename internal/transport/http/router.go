// Package httptransport assembles the public HTTP surface: domain routers,
// session issuance, health, and metrics.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitid/internal/deploy"
	geofencehandler "visitid/internal/geofence/handler"
	jwttoken "visitid/internal/jwt_token"
	platformredis "visitid/internal/platform/redis"
	registryhandler "visitid/internal/registry/handler"
	"visitid/internal/registry/models"
	"visitid/internal/transport/http/shared"
	dErrors "visitid/pkg/domain-errors"
)

// sessionTTL bounds how long an issued session token stays valid.
const sessionTTL = time.Hour

// Deps are the wired components the router mounts.
type Deps struct {
	Logger     *slog.Logger
	Registry   *registryhandler.Handler
	Geofence   *geofencehandler.Handler
	JWTService *jwttoken.JWTService

	Descriptor      deploy.Descriptor
	DescriptorFound bool
	Redis           *platformredis.Client
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	deps.Registry.Register(r)
	deps.Geofence.Register(r)

	r.Post("/session", handleSession(deps))
	r.Get("/healthz", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type sessionRequest struct {
	Owner string `json:"owner"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	ExpiresIn int64  `json:"expiresIn"`
}

// handleSession mints a session token binding the caller to a fresh session
// id. One registration may be in flight per issued session.
func handleSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		owner := models.NormalizeOwner(req.Owner)
		if owner.IsZero() {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "owner is required"))
			return
		}

		token, sessionID, err := deps.JWTService.IssueSessionToken(owner, sessionTTL)
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "session token issuance failed", "error", err.Error())
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue session token"))
			return
		}

		shared.WriteJSON(w, http.StatusOK, sessionResponse{
			Token:     token,
			SessionID: sessionID,
			ExpiresIn: int64(sessionTTL.Seconds()),
		})
	}
}

type healthResponse struct {
	Status     string             `json:"status"`
	Registry   string             `json:"registry"`
	Deployment *deploy.Descriptor `json:"deployment,omitempty"`
	Redis      string             `json:"redis,omitempty"`
}

// handleHealth reports liveness plus provenance. A missing deploy descriptor
// marks the registry unavailable but does not fail the probe: the process
// stays up and serves what it can.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Registry: "unavailable"}
		if deps.DescriptorFound {
			d := deps.Descriptor
			resp.Deployment = &d
			resp.Registry = "ok"
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(r.Context()); err != nil {
				resp.Redis = "unreachable"
			} else {
				resp.Redis = "ok"
			}
		}
		shared.WriteJSON(w, http.StatusOK, resp)
	}
}
