// Package ports defines shared interfaces for the ratelimit module.
package ports

import (
	"context"
	"time"

	"anonid/internal/ratelimit/models"
)

// QuotaStore keeps daily query counters per (tenant, user).
type QuotaStore interface {
	// Get returns the subject's record, or nil when none exists.
	Get(ctx context.Context, subject models.Subject) (*models.QuotaRecord, error)

	// Consume atomically adds one query to the window starting at windowStart
	// if the count is below limit. A record from an earlier window is reset
	// first. ttl bounds how long the record is kept.
	Consume(ctx context.Context, subject models.Subject, windowStart time.Time, limit int, ttl time.Duration) (rec *models.QuotaRecord, allowed bool, err error)

	// Release returns one query to the window starting at windowStart. It is a
	// no-op when the record has already rolled over.
	Release(ctx context.Context, subject models.Subject, windowStart time.Time) error

	// Reset clears the subject's record.
	Reset(ctx context.Context, subject models.Subject) error

	// PruneBefore drops records whose window started before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
