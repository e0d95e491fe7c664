package adapters

import (
	"context"

	"anonid/internal/ratelimit/models"
	"anonid/internal/ratelimit/service/quota"
	"anonid/internal/resolver/ports"
	id "anonid/pkg/domain"
)

// QuotaAdapter exposes the quota guard through ports.QuotaPort.
type QuotaAdapter struct {
	guard *quota.Service
}

func NewQuotaAdapter(guard *quota.Service) *QuotaAdapter {
	return &QuotaAdapter{guard: guard}
}

func (a *QuotaAdapter) Reserve(ctx context.Context, tenantID id.TenantID, userID id.UserID) (ports.Reservation, error) {
	r, err := a.guard.Reserve(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a *QuotaAdapter) CheckQueryLimit(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.QuotaResult, error) {
	return a.guard.CheckQueryLimit(ctx, tenantID, userID)
}

func (a *QuotaAdapter) Reset(ctx context.Context, tenantID id.TenantID, userID id.UserID) error {
	return a.guard.Reset(ctx, tenantID, userID)
}
