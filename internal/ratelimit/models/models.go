package models

import (
	"time"

	id "anonid/pkg/domain"
)

// Subject identifies whose queries a quota record counts. User IDs are only
// unique within a tenant.
type Subject struct {
	TenantID id.TenantID
	UserID   id.UserID
}

func NewSubject(tenantID id.TenantID, userID id.UserID) Subject {
	return Subject{TenantID: tenantID, UserID: userID}
}

// QuotaRecord is a user's query count within one daily window.
type QuotaRecord struct {
	TenantID    id.TenantID `json:"tenant_id"`
	UserID      id.UserID   `json:"user_id"`
	Count       int         `json:"count"`
	WindowStart time.Time   `json:"window_start"`
}

// Subject returns the tenant and user the record belongs to.
func (r QuotaRecord) Subject() Subject {
	return Subject{TenantID: r.TenantID, UserID: r.UserID}
}

// QuotaResult is the outcome of a quota check or reservation.
type QuotaResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// NewQuotaResult derives the result for count queries used out of limit.
func NewQuotaResult(count, limit int, resetAt time.Time) QuotaResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return QuotaResult{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// RetryAfter returns the wait until the window resets, rounded up to whole
// seconds. It is zero while queries are still allowed.
func (r QuotaResult) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now).Round(time.Second)
}
