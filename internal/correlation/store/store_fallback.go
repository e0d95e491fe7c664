package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"anonid/internal/correlation/metrics"
	"anonid/internal/correlation/models"
	"anonid/internal/correlation/ports"
	id "anonid/pkg/domain"
	"anonid/pkg/platform/circuit"
	"anonid/pkg/platform/sentinel"
)

// FallbackStore serves from primary while it is healthy and from an in-memory
// store while its circuit is open. Densities are per replica while degraded.
type FallbackStore struct {
	primary  ports.CorrelationStore
	fallback ports.CorrelationStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type FallbackOption func(*FallbackStore)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackStore) {
		s.logger = logger
	}
}

func WithFallbackMetrics(m *metrics.Metrics) FallbackOption {
	return func(s *FallbackStore) {
		s.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(s *FallbackStore) {
		s.breaker = b
	}
}

func NewFallback(primary, fallback ports.CorrelationStore, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("correlation-store")
	}
	return s
}

// Degraded reports whether the fallback is serving.
func (s *FallbackStore) Degraded() bool {
	return s.breaker.IsOpen()
}

// Get takes the higher of the two densities so activity recorded while
// degraded still counts after recovery.
func (s *FallbackStore) Get(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey) (*models.Record, error) {
	local, err := s.fallback.Get(ctx, tenantID, segment)
	if err != nil {
		return nil, err
	}
	if !s.breaker.AllowPrimary() {
		return local, nil
	}
	remote, err := s.primary.Get(ctx, tenantID, segment)
	if err != nil {
		s.recordFailure(ctx, "get", err)
		return local, nil
	}
	s.recordSuccess(ctx)
	return denser(remote, local), nil
}

func (s *FallbackStore) Add(ctx context.Context, tenantID id.TenantID, segment id.SegmentKey, now time.Time, halfLife time.Duration) (*models.Record, error) {
	if s.breaker.AllowPrimary() {
		rec, err := s.primary.Add(ctx, tenantID, segment, now, halfLife)
		if err == nil {
			s.recordSuccess(ctx)
			return rec, nil
		}
		s.recordFailure(ctx, "add", err)
	}
	return s.fallback.Add(ctx, tenantID, segment, now, halfLife)
}

func (s *FallbackStore) PruneIdle(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.fallback.PruneIdle(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if s.breaker.IsOpen() {
		return n, nil
	}
	m, err := s.primary.PruneIdle(ctx, cutoff)
	return n + m, err
}

func (s *FallbackStore) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetDegraded(false)
		s.logger.InfoContext(ctx, "correlation store recovered, leaving fallback mode")
	}
}

func (s *FallbackStore) recordFailure(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "correlation store operation failed", "op", op, "error", err)
	// Malformed data is served around but only connectivity trips the breaker.
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return
	}
	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.metrics.SetDegraded(true)
		s.logger.ErrorContext(ctx, "correlation store circuit opened, serving from in-memory fallback")
	}
}

// denser compares records by density at the later of their update times.
func denser(a, b *models.Record) *models.Record {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	at := a.LastUpdated
	if b.LastUpdated.After(at) {
		at = b.LastUpdated
	}
	// Half-life does not matter for ordering records decayed to the same instant
	// at the same rate, so an hour stands in.
	if a.DensityAt(at, time.Hour) >= b.DensityAt(at, time.Hour) {
		return a
	}
	return b
}
