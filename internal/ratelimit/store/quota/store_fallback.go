package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"anonid/internal/ratelimit/metrics"
	"anonid/internal/ratelimit/models"
	"anonid/internal/ratelimit/ports"
	"anonid/pkg/platform/circuit"
	"anonid/pkg/platform/sentinel"
)

// FallbackQuotaStore serves from primary while it is healthy and from an
// in-memory store while its circuit is open, so quota enforcement continues
// through a Redis outage. Counts are per replica while degraded.
type FallbackQuotaStore struct {
	primary  ports.QuotaStore
	fallback ports.QuotaStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type FallbackOption func(*FallbackQuotaStore)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackQuotaStore) {
		s.logger = logger
	}
}

func WithFallbackMetrics(m *metrics.Metrics) FallbackOption {
	return func(s *FallbackQuotaStore) {
		s.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(s *FallbackQuotaStore) {
		s.breaker = b
	}
}

func NewFallback(primary, fallback ports.QuotaStore, opts ...FallbackOption) *FallbackQuotaStore {
	s := &FallbackQuotaStore{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("quota-store")
	}
	return s
}

// Degraded reports whether the fallback is serving.
func (s *FallbackQuotaStore) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *FallbackQuotaStore) Get(ctx context.Context, subject models.Subject) (*models.QuotaRecord, error) {
	if s.breaker.AllowPrimary() {
		rec, err := s.primary.Get(ctx, subject)
		if err == nil {
			s.recordSuccess(ctx)
			return rec, nil
		}
		s.recordFailure(ctx, "get", err)
	}
	return s.fallback.Get(ctx, subject)
}

func (s *FallbackQuotaStore) Consume(ctx context.Context, subject models.Subject, windowStart time.Time, limit int, ttl time.Duration) (*models.QuotaRecord, bool, error) {
	if s.breaker.AllowPrimary() {
		rec, allowed, err := s.primary.Consume(ctx, subject, windowStart, limit, ttl)
		if err == nil {
			s.recordSuccess(ctx)
			return rec, allowed, nil
		}
		s.recordFailure(ctx, "consume", err)
	}
	return s.fallback.Consume(ctx, subject, windowStart, limit, ttl)
}

// Release is applied to both stores; a reservation may have been taken from
// either side of a state change.
func (s *FallbackQuotaStore) Release(ctx context.Context, subject models.Subject, windowStart time.Time) error {
	if s.breaker.AllowPrimary() {
		if err := s.primary.Release(ctx, subject, windowStart); err != nil {
			s.recordFailure(ctx, "release", err)
		}
	}
	return s.fallback.Release(ctx, subject, windowStart)
}

func (s *FallbackQuotaStore) Reset(ctx context.Context, subject models.Subject) error {
	if err := s.fallback.Reset(ctx, subject); err != nil {
		return err
	}
	if !s.breaker.AllowPrimary() {
		return nil
	}
	if err := s.primary.Reset(ctx, subject); err != nil {
		s.recordFailure(ctx, "reset", err)
		return err
	}
	return nil
}

func (s *FallbackQuotaStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.fallback.PruneBefore(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if s.breaker.IsOpen() {
		return n, nil
	}
	m, err := s.primary.PruneBefore(ctx, cutoff)
	return n + m, err
}

func (s *FallbackQuotaStore) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetDegraded(false)
		s.logger.InfoContext(ctx, "quota store recovered, leaving fallback mode")
	}
}

func (s *FallbackQuotaStore) recordFailure(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "quota store operation failed", "op", op, "error", err)
	// Malformed data is served around but only connectivity trips the breaker.
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return
	}
	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.metrics.SetDegraded(true)
		s.logger.ErrorContext(ctx, "quota store circuit opened, serving from in-memory fallback")
	}
}
