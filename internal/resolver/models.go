package resolver

import (
	"anonid/internal/identity"
	id "anonid/pkg/domain"
)

// Request is one identity resolution. It lives only for the duration of the
// call; the VIN is never copied out of it in raw form.
type Request struct {
	VIN      identity.VIN
	TenantID id.TenantID
	UserID   id.UserID
	Segment  id.Segment
}

// Result is a successful resolution.
type Result struct {
	AnonymousID id.AnonymousVehicleID
	Window      string
}

// Signal is a security event reported by a client application.
type Signal struct {
	Type     string
	Severity string
	Message  string
}
