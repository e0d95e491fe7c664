package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"anonid/internal/correlation/models"
	id "anonid/pkg/domain"
	"anonid/pkg/platform/sentinel"
)

const DefaultKeyPrefix = "anonid:"

// addScript decays the stored density to ARGV[1] (unix ms) with half-life
// ARGV[2] (ms), adds one and refreshes the idle TTL ARGV[3] (ms). Lua numbers
// are truncated to integers on return, so the density travels as a string.
var addScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local halflife = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local density = 0
local updated = now
local vals = redis.call('HMGET', KEYS[1], 'density', 'updated')
if vals[1] then
  density = tonumber(vals[1])
  updated = tonumber(vals[2])
  local elapsed = now - updated
  if elapsed > 0 and halflife > 0 then
    density = density * math.pow(0.5, elapsed / halflife)
  end
end
density = density + 1
if now > updated then
  updated = now
end
redis.call('HSET', KEYS[1], 'density', tostring(density), 'updated', updated)
redis.call('PEXPIRE', KEYS[1], ttl)
return {tostring(density), tostring(updated)}
`)

// RedisStore shares correlation densities across replicas. Idle records
// expire through their TTL, so PruneIdle has nothing to do.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(tenantID id.TenantID, segment id.SegmentKey) string {
	return models.RedisKey(s.prefix, tenantID, segment)
}

func (s *RedisStore) Get(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey) (*models.Record, error) {
	vals, err := s.client.HMGet(ctx, s.key(tenantID, segment), "density", "updated").Result()
	if err != nil {
		return nil, fmt.Errorf("redis get correlation: %w: %w", sentinel.ErrUnavailable, err)
	}
	if vals[0] == nil {
		return nil, nil
	}
	densityStr, _ := vals[0].(string)
	updatedStr, _ := vals[1].(string)
	return parseRecord(tenantID, segment, densityStr, updatedStr)
}

func (s *RedisStore) Add(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey, now time.Time, halfLife time.Duration) (*models.Record, error) {
	res, err := addScript.Run(ctx, s.client, []string{s.key(tenantID, segment)},
		now.UnixMilli(),
		halfLife.Milliseconds(),
		models.IdleAfter(halfLife).Milliseconds(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis add correlation: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis add correlation: unexpected script result")
	}
	return parseRecord(tenantID, segment, res[0], res[1])
}

func (s *RedisStore) PruneIdle(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseRecord(tenantID id.TenantID, segment id.SegmentKey, densityStr, updatedStr string) (*models.Record, error) {
	density, err := strconv.ParseFloat(densityStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse correlation density: %w", err)
	}
	updated, err := strconv.ParseInt(updatedStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse correlation timestamp: %w", err)
	}
	return &models.Record{
		TenantID:    tenantID,
		Segment:     segment,
		Density:     density,
		LastUpdated: time.UnixMilli(updated).UTC(),
	}, nil
}
