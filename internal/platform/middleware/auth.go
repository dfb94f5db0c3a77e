package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Owner     string
	SessionID string
}

// Context keys for storing authenticated caller information
type contextKeyOwner struct{}
type contextKeySessionID struct{}

var (
	ContextKeyOwner     = contextKeyOwner{}
	ContextKeySessionID = contextKeySessionID{}
)

// GetOwner retrieves the authenticated owner address from the context
func GetOwner(ctx context.Context) string {
	owner, ok := ctx.Value(ContextKeyOwner).(string)
	if !ok {
		return ""
	}
	return owner
}

// GetSessionID retrieves the client session ID from the context
func GetSessionID(ctx context.Context) string {
	sessionID, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}
	return sessionID
}

// RequireAuth validates the bearer token and stores owner and session in the
// request context. Handlers behind it can assume both are present.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "token validation failed",
						"error", err.Error(),
						"request_id", GetRequestID(r.Context()),
					)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyOwner, claims.Owner)
			ctx = context.WithValue(ctx, ContextKeySessionID, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
