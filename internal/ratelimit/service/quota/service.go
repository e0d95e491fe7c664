// Package quota enforces the per-user daily query cap. Counters are scoped
// by tenant because user IDs are only unique within one.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"anonid/internal/ratelimit/metrics"
	"anonid/internal/ratelimit/models"
	"anonid/internal/ratelimit/ports"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	"anonid/pkg/platform/audit"
	"anonid/pkg/platform/observability"
	"anonid/pkg/requestcontext"
)

// DefaultDailyLimit is the number of resolutions a user may run per day.
const DefaultDailyLimit = 100

// recordGrace keeps a record slightly past its window so a late Release
// still finds it.
const recordGrace = time.Hour

// Type aliases for shared interfaces.
type (
	Store          = ports.QuotaStore
	AuditPublisher = audit.SecurityPublisher
)

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	limit          int
	loc            *time.Location
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDailyLimit sets the per-user cap.
func WithDailyLimit(n int) Option {
	return func(s *Service) {
		s.limit = n
	}
}

// WithLocation sets the zone whose local midnight ends the daily window.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("quota store is required")
	}

	svc := &Service{
		store:  store,
		limit:  DefaultDailyLimit,
		loc:    time.UTC,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.limit <= 0 {
		return nil, errors.New("daily limit must be positive")
	}
	return svc, nil
}

// Limit returns the configured daily cap.
func (s *Service) Limit() int { return s.limit }

// Window returns the start and end of the daily window containing now.
func (s *Service) Window(now time.Time) (start, end time.Time) {
	local := now.In(s.loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.loc)
	return start, end
}

// CheckQueryLimit reports the user's standing without consuming quota.
// It emits LIMIT_EXCEEDED when the user has no queries left.
func (s *Service) CheckQueryLimit(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.QuotaResult, error) {
	subject, err := subjectOf(tenantID, userID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	start, end := s.Window(now)

	rec, err := s.store.Get(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read quota")
	}
	count := 0
	if rec != nil && rec.WindowStart.Equal(start) {
		count = rec.Count
	}

	result := models.NewQuotaResult(count, s.limit, end)
	if !result.Allowed {
		s.logExceeded(ctx, subject)
	}
	return &result, nil
}

// Reservation is one consumed unit of quota. Release returns it when a later
// stage of the request fails.
type Reservation struct {
	store       Store
	metrics     *metrics.Metrics
	subject     models.Subject
	windowStart time.Time
	result      models.QuotaResult
	released    atomic.Bool
}

// Result returns the quota standing after the reservation was taken.
func (r *Reservation) Result() models.QuotaResult { return r.result }

// Release returns the unit. Only the first call has an effect.
func (r *Reservation) Release(ctx context.Context) error {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.store.Release(ctx, r.subject, r.windowStart); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release quota")
	}
	r.metrics.IncrementReleases()
	return nil
}

// Reserve atomically checks and consumes one query. When the cap is reached
// it emits exactly one LIMIT_EXCEEDED event and returns a quota error whose
// RetryAfter points at the next window.
func (s *Service) Reserve(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*Reservation, error) {
	subject, err := subjectOf(tenantID, userID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	start, end := s.Window(now)

	rec, allowed, err := s.store.Consume(ctx, subject, start, s.limit, end.Sub(now)+recordGrace)
	if err != nil {
		s.metrics.IncrementReservations("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve quota")
	}

	if !allowed {
		s.metrics.IncrementReservations("rejected")
		s.metrics.IncrementRejections()
		s.logExceeded(ctx, subject)
		result := models.NewQuotaResult(rec.Count, s.limit, end)
		return nil, dErrors.New(dErrors.CodeQuotaExceeded, "daily query limit exceeded").
			WithRetryAfter(result.RetryAfter(now))
	}

	s.metrics.IncrementReservations("granted")
	// The unit just consumed is already counted, so Allowed reflects whether
	// another query would fit.
	return &Reservation{
		store:       s.store,
		metrics:     s.metrics,
		subject:     subject,
		windowStart: start,
		result:      models.NewQuotaResult(rec.Count, s.limit, end),
	}, nil
}

// Reset clears a user's quota for the current window.
func (s *Service) Reset(ctx context.Context, tenantID id.TenantID, userID id.UserID) error {
	subject, err := subjectOf(tenantID, userID)
	if err != nil {
		return err
	}

	if err := s.store.Reset(ctx, subject); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset quota")
	}

	observability.LogAudit(ctx, s.logger, s.auditPublisher,
		audit.EventQuotaReset, audit.SeverityInfo, "daily query quota reset",
		"tenant_id", subject.TenantID.String(),
		"user_id", subject.UserID.String(),
	)
	return nil
}

// Prune drops records from windows that ended before now.
func (s *Service) Prune(ctx context.Context) (int, error) {
	start, _ := s.Window(requestcontext.Now(ctx))
	n, err := s.store.PruneBefore(ctx, start)
	if err != nil {
		return n, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prune quota records")
	}
	return n, nil
}

func (s *Service) logExceeded(ctx context.Context, subject models.Subject) {
	observability.LogAudit(ctx, s.logger, s.auditPublisher,
		audit.EventLimitExceeded, audit.SeverityCritical, "daily query limit exceeded",
		"user_id", subject.UserID.String(),
		"tenant_id", subject.TenantID.String(),
		"limit", s.limit,
	)
}

func subjectOf(tenantID id.TenantID, userID id.UserID) (models.Subject, error) {
	if tenantID.IsNil() {
		return models.Subject{}, dErrors.New(dErrors.CodeBadRequest, "tenant_id is required")
	}
	if userID.IsNil() {
		return models.Subject{}, dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	return models.NewSubject(tenantID, userID), nil
}
