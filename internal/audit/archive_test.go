package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingArchive struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (r *recordingArchive) Append(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingArchive) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestArchiveWorker_MirrorsTrail(t *testing.T) {
	store := &recordingArchive{}
	worker, err := NewArchiveWorker(store, WithArchiveLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	trail := newTestTrail(WithArchive(worker))
	for i := range 10 {
		trail.Append(context.Background(), entryFor(i))
	}

	assert.Eventually(t, func() bool { return store.count() == 10 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestArchiveWorker_FailuresDoNotAffectTrail(t *testing.T) {
	store := &recordingArchive{err: errors.New("database unavailable")}
	metrics := NewArchiveMetrics(prometheus.NewRegistry())
	worker, err := NewArchiveWorker(store,
		WithArchiveLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithArchiveMetrics(metrics),
		WithQueueSize(2),
	)
	require.NoError(t, err)

	trail := newTestTrail(WithArchive(worker))
	for i := range 3 {
		trail.Append(context.Background(), entryFor(i))
	}
	assert.Equal(t, 3, trail.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Dropped))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, worker.Run(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Failures))
	assert.Equal(t, 0, worker.Pending())
}

func TestNewArchiveWorker_RequiresStore(t *testing.T) {
	_, err := NewArchiveWorker(nil)
	assert.Error(t, err)
}
