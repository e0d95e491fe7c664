package quota

import (
	"context"
	"time"

	"anonid/internal/ratelimit/models"
	"anonid/pkg/platform/shardmap"
)

// InMemoryQuotaStore keeps quota records in a sharded map. Records live for
// the process lifetime unless pruned.
type InMemoryQuotaStore struct {
	records *shardmap.Map[models.Subject, models.QuotaRecord]
}

func New() *InMemoryQuotaStore {
	return &InMemoryQuotaStore{
		records: shardmap.New[models.Subject, models.QuotaRecord](shardmap.DefaultShards),
	}
}

func (s *InMemoryQuotaStore) Get(_ context.Context, subject models.Subject) (*models.QuotaRecord, error) {
	rec, ok := s.records.Load(subject)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryQuotaStore) Consume(_ context.Context, subject models.Subject, windowStart time.Time, limit int, _ time.Duration) (*models.QuotaRecord, bool, error) {
	var (
		out     models.QuotaRecord
		allowed bool
	)
	s.records.Compute(subject, func(cur models.QuotaRecord, exists bool) (models.QuotaRecord, bool) {
		if !exists || !cur.WindowStart.Equal(windowStart) {
			cur = models.QuotaRecord{TenantID: subject.TenantID, UserID: subject.UserID, WindowStart: windowStart}
		}
		if cur.Count < limit {
			cur.Count++
			allowed = true
		}
		out = cur
		return cur, true
	})
	return &out, allowed, nil
}

func (s *InMemoryQuotaStore) Release(_ context.Context, subject models.Subject, windowStart time.Time) error {
	s.records.Compute(subject, func(cur models.QuotaRecord, exists bool) (models.QuotaRecord, bool) {
		if !exists {
			return cur, false
		}
		if cur.WindowStart.Equal(windowStart) && cur.Count > 0 {
			cur.Count--
		}
		return cur, true
	})
	return nil
}

func (s *InMemoryQuotaStore) Reset(_ context.Context, subject models.Subject) error {
	s.records.Delete(subject)
	return nil
}

func (s *InMemoryQuotaStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	return s.records.DeleteFunc(func(_ models.Subject, rec models.QuotaRecord) bool {
		return rec.WindowStart.Before(cutoff)
	}), nil
}

// Len returns the number of tracked (tenant, user) pairs.
func (s *InMemoryQuotaStore) Len() int {
	return s.records.Len()
}
