package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	audit "anonid/pkg/platform/audit"
)

const defaultStreamMaxLen = 100000

// RedisStreamSink appends events to a capped Redis stream.
type RedisStreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamSink(client redis.Cmdable, stream string, maxLen int64) (*RedisStreamSink, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if stream == "" {
		return nil, errors.New("redis stream name is required")
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}, nil
}

func (s *RedisStreamSink) Write(ctx context.Context, events []audit.SecurityEvent) error {
	pipe := s.client.Pipeline()
	for _, e := range events {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]any{
				"id":         e.ID,
				"type":       string(e.Type),
				"category":   string(e.Category),
				"severity":   string(e.Severity),
				"message":    e.Message,
				"subject":    e.Subject,
				"tenant_id":  e.TenantID,
				"request_id": e.RequestID,
				"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd security events: %w", err)
	}
	return nil
}
