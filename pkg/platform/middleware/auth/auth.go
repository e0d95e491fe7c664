// Package auth authenticates callers from a bearer JWT and places the tenant
// and user on the request context.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "anonid/pkg/domain"
	"anonid/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	TenantID string
	UserID   string
	JTI      string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			tenantID, userID, err := callerFrom(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed caller claims",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Token does not identify a caller")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, tenantID, userID)))
		})
	}
}

func callerFrom(claims *JWTClaims) (id.TenantID, id.UserID, error) {
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return "", "", err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return "", "", err
	}
	return tenantID, userID, nil
}

// Caller returns the authenticated caller, or false when the request did not
// pass through RequireAuth.
func Caller(ctx context.Context) (id.TenantID, id.UserID, bool) {
	tenantID, userID := requestcontext.TenantID(ctx), requestcontext.UserID(ctx)
	return tenantID, userID, !tenantID.IsNil() && !userID.IsNil()
}
