package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"anonid/internal/ratelimit/models"
	"anonid/pkg/platform/sentinel"
)

const DefaultKeyPrefix = "anonid:"

// consumeScript resets a stale window, then increments the counter if it is
// below the limit. Returns {count, allowed}.
var consumeScript = redis.NewScript(`
local window = ARGV[1]
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local count = 0
if redis.call('HGET', KEYS[1], 'window') == window then
  count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
end
if count >= limit then
  return {count, 0}
end
count = count + 1
redis.call('HSET', KEYS[1], 'window', window, 'count', count)
redis.call('PEXPIRE', KEYS[1], ttl)
return {count, 1}
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'window') == ARGV[1] then
  local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
  if count > 0 then
    redis.call('HINCRBY', KEYS[1], 'count', -1)
  end
end
return 1
`)

// RedisQuotaStore shares quota records across replicas. Each operation is a
// single Lua script, so check and increment are atomic. Records expire with
// their window, so PruneBefore has nothing to do.
type RedisQuotaStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *RedisQuotaStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisQuotaStore{client: client, prefix: prefix}
}

func (s *RedisQuotaStore) key(subject models.Subject) string {
	return models.QuotaKey(s.prefix, subject)
}

func (s *RedisQuotaStore) Get(ctx context.Context, subject models.Subject) (*models.QuotaRecord, error) {
	vals, err := s.client.HMGet(ctx, s.key(subject), "window", "count").Result()
	if err != nil {
		return nil, fmt.Errorf("redis get quota: %w: %w", sentinel.ErrUnavailable, err)
	}
	if vals[0] == nil {
		return nil, nil
	}
	windowStr, _ := vals[0].(string)
	countStr, _ := vals[1].(string)
	window, err := strconv.ParseInt(windowStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse quota window: %w", err)
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return nil, fmt.Errorf("parse quota count: %w", err)
	}
	return &models.QuotaRecord{
		TenantID:    subject.TenantID,
		UserID:      subject.UserID,
		Count:       count,
		WindowStart: time.Unix(window, 0).UTC(),
	}, nil
}

func (s *RedisQuotaStore) Consume(ctx context.Context, subject models.Subject, windowStart time.Time, limit int, ttl time.Duration) (*models.QuotaRecord, bool, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(subject)},
		strconv.FormatInt(windowStart.Unix(), 10),
		limit,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, false, fmt.Errorf("redis consume quota: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(res) != 2 {
		return nil, false, errors.New("redis consume quota: unexpected script result")
	}
	return &models.QuotaRecord{
		TenantID:    subject.TenantID,
		UserID:      subject.UserID,
		Count:       int(res[0]),
		WindowStart: windowStart.UTC(),
	}, res[1] == 1, nil
}

func (s *RedisQuotaStore) Release(ctx context.Context, subject models.Subject, windowStart time.Time) error {
	err := releaseScript.Run(ctx, s.client, []string{s.key(subject)},
		strconv.FormatInt(windowStart.Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis release quota: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisQuotaStore) Reset(ctx context.Context, subject models.Subject) error {
	if err := s.client.Del(ctx, s.key(subject)).Err(); err != nil {
		return fmt.Errorf("redis reset quota: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisQuotaStore) PruneBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}
