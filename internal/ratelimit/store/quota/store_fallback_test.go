package quota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonid/internal/ratelimit/models"
	id "anonid/pkg/domain"
	"anonid/pkg/platform/circuit"
	"anonid/pkg/platform/sentinel"
)

// flakyStore wraps the in-memory store and fails with err while it is set.
type flakyStore struct {
	*InMemoryQuotaStore
	err error
}

var errStoreDown = fmt.Errorf("dial tcp: connection refused: %w", sentinel.ErrUnavailable)

func (f *flakyStore) Get(ctx context.Context, subject models.Subject) (*models.QuotaRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.InMemoryQuotaStore.Get(ctx, subject)
}

func (f *flakyStore) Consume(ctx context.Context, subject models.Subject, ws time.Time, limit int, ttl time.Duration) (*models.QuotaRecord, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.InMemoryQuotaStore.Consume(ctx, subject, ws, limit, ttl)
}

func TestFallbackQuotaStore(t *testing.T) {
	ctx := context.Background()
	user := models.NewSubject("T1", id.UserID("analyst-1"))
	primary := &flakyStore{InMemoryQuotaStore: New()}
	breaker := circuit.New("quota", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1), circuit.WithProbeInterval(time.Nanosecond))
	store := NewFallback(primary, New(),
		WithBreaker(breaker),
		WithFallbackLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	t.Run("healthy primary serves requests", func(t *testing.T) {
		_, allowed, err := store.Consume(ctx, user, day1, 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		rec, _ := primary.InMemoryQuotaStore.Get(ctx, user)
		require.NotNil(t, rec)
		assert.Equal(t, 1, rec.Count)
	})

	t.Run("malformed data is served around without opening the circuit", func(t *testing.T) {
		primary.err = errors.New("parse quota count: invalid syntax")
		for range 3 {
			_, allowed, err := store.Consume(ctx, user, day1, 10, time.Hour)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		assert.False(t, store.Degraded())
		primary.err = nil
	})

	t.Run("primary outage falls back and opens the circuit", func(t *testing.T) {
		primary.err = errStoreDown
		for range 2 {
			_, allowed, err := store.Consume(ctx, user, day1, 5, time.Hour)
			require.NoError(t, err, "fallback must absorb primary errors")
			assert.True(t, allowed)
		}
		assert.True(t, store.Degraded())
	})

	t.Run("successful probe closes the circuit", func(t *testing.T) {
		primary.err = nil
		_, _, err := store.Consume(ctx, user, day1, 5, time.Hour)
		require.NoError(t, err)
		assert.False(t, store.Degraded())
	})
}
