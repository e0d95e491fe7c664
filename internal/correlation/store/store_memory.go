package store

import (
	"context"
	"time"

	"anonid/internal/correlation/models"
	id "anonid/pkg/domain"
	"anonid/pkg/platform/shardmap"
)

// InMemoryStore keeps correlation records in a sharded map.
type InMemoryStore struct {
	records *shardmap.Map[models.Key, models.Record]
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		records: shardmap.New[models.Key, models.Record](shardmap.DefaultShards),
	}
}

func (s *InMemoryStore) Get(_ context.Context, tenantID id.TenantID, segment id.SegmentKey) (*models.Record, error) {
	rec, ok := s.records.Load(models.Key{TenantID: tenantID, Segment: segment})
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) Add(_ context.Context, tenantID id.TenantID, segment id.SegmentKey, now time.Time, halfLife time.Duration) (*models.Record, error) {
	var out models.Record
	s.records.Compute(models.Key{TenantID: tenantID, Segment: segment}, func(cur models.Record, exists bool) (models.Record, bool) {
		if !exists {
			cur = models.Record{TenantID: tenantID, Segment: segment}
		}
		cur.Density = cur.DensityAt(now, halfLife) + 1
		if now.After(cur.LastUpdated) {
			cur.LastUpdated = now
		}
		out = cur
		return cur, true
	})
	return &out, nil
}

func (s *InMemoryStore) PruneIdle(_ context.Context, cutoff time.Time) (int, error) {
	return s.records.DeleteFunc(func(_ models.Key, rec models.Record) bool {
		return rec.LastUpdated.Before(cutoff)
	}), nil
}

// Len returns the number of tracked pairs.
func (s *InMemoryStore) Len() int {
	return s.records.Len()
}
