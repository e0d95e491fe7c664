package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pruneFunc func(ctx context.Context) (int, error)

func (f pruneFunc) Prune(ctx context.Context) (int, error) { return f(ctx) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		jobs     []Job
		wantErr  string
	}{
		{name: "valid", schedule: "*/15 * * * *", jobs: []Job{{Name: "quota", Pruner: pruneFunc(nil)}}},
		{name: "invalid schedule", schedule: "every so often", wantErr: "invalid cron schedule"},
		{name: "empty schedule", schedule: "", wantErr: "invalid cron schedule"},
		{name: "unnamed job", schedule: "0 * * * *", jobs: []Job{{Pruner: pruneFunc(nil)}}, wantErr: "needs a name"},
		{name: "nil pruner", schedule: "0 * * * *", jobs: []Job{{Name: "quota"}}, wantErr: "needs a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schedule, tt.jobs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRunOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var correlationRan bool

	s, err := New("0 * * * *", []Job{
		{Name: "quota", Pruner: pruneFunc(func(context.Context) (int, error) {
			return 0, errors.New("store unavailable")
		})},
		{Name: "correlation", Pruner: pruneFunc(func(context.Context) (int, error) {
			correlationRan = true
			return 3, nil
		})},
	}, WithLogger(discard()), WithMetrics(metrics))
	require.NoError(t, err)

	s.RunOnce(context.Background())

	assert.True(t, correlationRan, "a failing job must not stop the rest")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures.WithLabelValues("quota")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Pruned.WithLabelValues("correlation")))
}

func TestRunOnce_CancelledContext(t *testing.T) {
	called := false
	s, err := New("0 * * * *", []Job{{Name: "quota", Pruner: pruneFunc(func(context.Context) (int, error) {
		called = true
		return 0, nil
	})}}, WithLogger(discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx)
	assert.False(t, called)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New("0 3 * * *", nil, WithLogger(discard()), WithLocation(time.UTC))
	require.NoError(t, err)
	assert.Nil(t, s.NextRun())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.IsRunning, time.Second, 5*time.Millisecond)
	next := s.NextRun()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.UTC().Hour())
	assert.ErrorContains(t, s.Run(ctx), "already running")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.IsRunning())
}
