package handler

import (
	"strings"

	"anonid/internal/identity"
	"anonid/internal/resolver"
)

// ResolveRequest is the body of POST /identities/resolve. The VIN decodes
// straight into identity.VIN so it never sits in a plain string field.
type ResolveRequest struct {
	VIN     identity.VIN   `json:"vin"`
	Segment SegmentRequest `json:"segment"`
}

type SegmentRequest struct {
	Brand string `json:"brand" validate:"required,max=64"`
	Model string `json:"model" validate:"max=64"`
}

func (r *ResolveRequest) Normalize() {
	r.Segment.Brand = strings.TrimSpace(r.Segment.Brand)
	r.Segment.Model = strings.TrimSpace(r.Segment.Model)
}

// SignalRequest is the body of POST /security-events.
type SignalRequest struct {
	Type     string `json:"type" validate:"required,max=64"`
	Severity string `json:"severity" validate:"required,max=16"`
	Message  string `json:"message" validate:"max=1024"`
}

func (r *SignalRequest) Normalize() {
	r.Type = strings.TrimSpace(r.Type)
	r.Severity = strings.TrimSpace(r.Severity)
}

func (r *SignalRequest) ToSignal() resolver.Signal {
	return resolver.Signal{Type: r.Type, Severity: r.Severity, Message: r.Message}
}
