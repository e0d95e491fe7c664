package handler

import (
	"anonid/internal/audit"
	"anonid/internal/resolver"
)

type ResolveResponse struct {
	AnonymousID string `json:"anonymous_id"`
	Window      string `json:"window"`
}

func FromResult(r *resolver.Result) ResolveResponse {
	return ResolveResponse{
		AnonymousID: r.AnonymousID.String(),
		Window:      r.Window,
	}
}

// AuditLogResponse lists audit entries, most recent first.
type AuditLogResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}
