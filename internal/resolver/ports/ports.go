package ports

import (
	"context"

	"anonid/internal/audit"
	"anonid/internal/identity"
	"anonid/internal/ratelimit/models"
	"anonid/internal/temporal"
	id "anonid/pkg/domain"
	events "anonid/pkg/platform/audit"
)

// Reservation is one consumed unit of query quota.
type Reservation interface {
	Release(ctx context.Context) error
}

// QuotaPort enforces the per-user daily cap. Users are counted per tenant.
type QuotaPort interface {
	Reserve(ctx context.Context, tenantID id.TenantID, userID id.UserID) (Reservation, error)
	CheckQueryLimit(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.QuotaResult, error)
	Reset(ctx context.Context, tenantID id.TenantID, userID id.UserID) error
}

// CorrelationPort guards (tenant, segment) pairs against mosaic queries.
type CorrelationPort interface {
	Check(ctx context.Context, tenantID id.TenantID, segment id.Segment) error
	RecordActivity(ctx context.Context, tenantID id.TenantID, segment id.Segment) error
}

// HasherPort derives anonymous IDs. It is the only port that sees the VIN.
type HasherPort interface {
	Resolve(ctx context.Context, vin identity.VIN, tenantID id.TenantID, userID id.UserID) (id.AnonymousVehicleID, error)
	Window(ctx context.Context) temporal.Window
}

// AuditLogPort exposes the retained audit window.
type AuditLogPort interface {
	Get(limit int) []audit.Entry
}

// SignalPort accepts security events reported by client applications.
type SignalPort = events.SecurityPublisher
