//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "anonid/pkg/domain"
	"anonid/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	store := NewRedis(rc.Client, "test:")

	t.Run("Get for untracked pair returns nil", func(t *testing.T) {
		rec, err := store.Get(ctx, tenant, bmwX5)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Add decays and increments atomically", func(t *testing.T) {
		for range 4 {
			_, err := store.Add(ctx, tenant, bmwX5, t0, time.Hour)
			require.NoError(t, err)
		}
		rec, err := store.Add(ctx, tenant, bmwX5, t0.Add(2*time.Hour), time.Hour)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, rec.Density, 1e-9)
		assert.Equal(t, t0.Add(2*time.Hour), rec.LastUpdated)

		got, err := store.Get(ctx, tenant, bmwX5)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, got.Density, 1e-9)
	})

	t.Run("records carry an idle TTL", func(t *testing.T) {
		ttl, err := rc.Client.PTTL(ctx, "test:corr:T1:bmw/x5").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 9*time.Hour)
	})

	t.Run("concurrent adds are not lost", func(t *testing.T) {
		seg := id.SegmentKey("vw/golf")
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = store.Add(ctx, tenant, seg, t0, time.Hour)
			}()
		}
		wg.Wait()

		rec, err := store.Get(ctx, tenant, seg)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, rec.Density, 1e-9)
	})
}
