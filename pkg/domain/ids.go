// Package domain holds the primitive types shared across the engine.
// Parse functions are trust-boundary checks: every value that reaches a service
// has already passed through one of them.
package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	dErrors "anonid/pkg/domain-errors"
)

const maxIdentifierLength = 64

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]*$`)

// TenantID identifies an organization. Anonymous IDs are scoped to it.
type TenantID string

// UserID identifies the accessor performing a lookup.
type UserID string

func (t TenantID) String() string { return string(t) }
func (t TenantID) IsNil() bool    { return t == "" }
func (u UserID) String() string   { return string(u) }
func (u UserID) IsNil() bool      { return u == "" }

// ParseTenantID validates a tenant identifier from an untrusted source.
func ParseTenantID(s string) (TenantID, error) {
	v, err := parseIdentifier(s, "tenant_id")
	return TenantID(v), err
}

// ParseUserID validates a user identifier from an untrusted source.
func ParseUserID(s string) (UserID, error) {
	v, err := parseIdentifier(s, "user_id")
	return UserID(v), err
}

func parseIdentifier(s, field string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if !utf8.ValidString(s) || len(s) > maxIdentifierLength || !identifierPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is malformed")
	}
	return s, nil
}

// SegmentKey is the coarse (brand, model) descriptor used for correlation
// tracking. It never identifies an individual vehicle.
type SegmentKey string

func (k SegmentKey) String() string { return string(k) }

// Segment is the caller-provided hint describing which vehicle group a lookup
// belongs to.
type Segment struct {
	Brand string
	Model string
}

// NewSegment validates and normalizes a segment hint. Model is optional; an
// empty model folds into a brand-wide segment.
func NewSegment(brand, model string) (Segment, error) {
	brand = strings.ToLower(strings.TrimSpace(brand))
	model = strings.ToLower(strings.TrimSpace(model))
	if brand == "" {
		return Segment{}, dErrors.New(dErrors.CodeInvalidInput, "segment brand is required")
	}
	if len(brand) > maxIdentifierLength || len(model) > maxIdentifierLength {
		return Segment{}, dErrors.New(dErrors.CodeInvalidInput, "segment is malformed")
	}
	if strings.ContainsAny(brand+model, "/\x00") {
		return Segment{}, dErrors.New(dErrors.CodeInvalidInput, "segment is malformed")
	}
	return Segment{Brand: brand, Model: model}, nil
}

// Key returns the storage key for the segment. Case and surrounding space are
// folded so a Segment built without NewSegment still maps to the same key.
func (s Segment) Key() SegmentKey {
	brand := strings.ToLower(strings.TrimSpace(s.Brand))
	model := strings.ToLower(strings.TrimSpace(s.Model))
	if model == "" {
		model = "*"
	}
	return SegmentKey(brand + "/" + model)
}

// AnonymousVehicleID is the tenant- and window-scoped handle returned to
// callers, formatted as 20 lowercase hex characters grouped 8-4-8.
type AnonymousVehicleID string

var anonymousIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{8}$`)

func (a AnonymousVehicleID) String() string { return string(a) }

// ParseAnonymousVehicleID validates the textual form of an anonymous ID.
func ParseAnonymousVehicleID(s string) (AnonymousVehicleID, error) {
	if !anonymousIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "anonymous id is malformed")
	}
	return AnonymousVehicleID(s), nil
}
