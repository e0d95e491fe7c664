package testutil

import (
	"net/http"

	id "anonid/pkg/domain"
	"anonid/pkg/requestcontext"
)

// WithCaller attaches an authenticated tenant and user to the request,
// as the auth middleware would after validating a bearer token.
// Invalid IDs leave the request unauthenticated.
func WithCaller(req *http.Request, tenantID, userID string) *http.Request {
	tenant, err := id.ParseTenantID(tenantID)
	if err != nil {
		return req
	}
	user, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), tenant, user))
}

// WithRequestID attaches a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
