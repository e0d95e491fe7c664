package ports

import (
	"context"
	"time"

	"anonid/internal/correlation/models"
	id "anonid/pkg/domain"
)

// CorrelationStore persists decayed query densities. Add must decay and
// increment atomically per (tenant, segment).
type CorrelationStore interface {
	// Get returns the stored record, or nil when the pair is untracked.
	// The density is as of LastUpdated; callers decay it to now.
	Get(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey) (*models.Record, error)
	// Add decays the stored density to now, adds one and returns the result.
	Add(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey, now time.Time, halfLife time.Duration) (*models.Record, error)
	// PruneIdle drops records last updated before cutoff.
	PruneIdle(ctx context.Context, cutoff time.Time) (int, error)
}
