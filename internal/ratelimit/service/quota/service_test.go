package quota

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"anonid/internal/ratelimit/metrics"
	quotaStore "anonid/internal/ratelimit/store/quota"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	"anonid/pkg/platform/audit"
	"anonid/pkg/platform/audit/publishers/security"
	"anonid/pkg/requestcontext"
)

// =============================================================================
// Quota Guard Test Suite
// =============================================================================
// Justification for unit tests: the (K+1)-th query must fail with exactly one
// LIMIT_EXCEEDED event, and rollover at local midnight depends on the request
// time. Both need a pinned clock that end-to-end tests cannot provide.

const testLimit = 3

type QuotaServiceSuite struct {
	suite.Suite
	store   *quotaStore.InMemoryQuotaStore
	sink    *security.MemorySink
	bus     *security.Publisher
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	service *Service
	tenant  id.TenantID
	user    id.UserID
	ctx     context.Context
}

func TestQuotaServiceSuite(t *testing.T) {
	suite.Run(t, new(QuotaServiceSuite))
}

func (s *QuotaServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = quotaStore.New()
	s.sink = security.NewMemorySink()
	bus, err := security.New(s.sink, security.WithLogger(logger))
	s.Require().NoError(err)
	s.bus = bus
	s.reg = prometheus.NewRegistry()
	s.metrics = metrics.New(s.reg)

	s.service, err = New(s.store,
		WithLogger(logger),
		WithAuditPublisher(s.bus),
		WithMetrics(s.metrics),
		WithDailyLimit(testLimit),
	)
	s.Require().NoError(err)

	s.tenant = id.TenantID("T1")
	s.user = id.UserID("analyst-1")
	s.ctx = s.at(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
}

func (s *QuotaServiceSuite) at(t time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), s.tenant, s.user)
	return requestcontext.WithTime(ctx, t)
}

func (s *QuotaServiceSuite) exceededEvents() int {
	s.Require().NoError(s.bus.Flush(context.Background()))
	return s.sink.Count(audit.EventLimitExceeded)
}

func (s *QuotaServiceSuite) exhaust(ctx context.Context) {
	for range testLimit {
		_, err := s.service.Reserve(ctx, s.tenant, s.user)
		s.Require().NoError(err)
	}
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *QuotaServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.ErrorContains(err, "quota store is required")
	})

	s.Run("non-positive limit returns error", func() {
		_, err := New(s.store, WithDailyLimit(0))
		s.ErrorContains(err, "daily limit must be positive")
	})

	s.Run("defaults apply", func() {
		svc, err := New(s.store)
		s.Require().NoError(err)
		s.Equal(DefaultDailyLimit, svc.Limit())
	})
}

// =============================================================================
// Window Tests
// =============================================================================

func (s *QuotaServiceSuite) TestWindow() {
	s.Run("window spans local midnight to midnight", func() {
		start, end := s.service.Window(time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC))
		s.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), start)
		s.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), end)
	})

	s.Run("configured zone moves the boundary", func() {
		berlin, err := time.LoadLocation("Europe/Berlin")
		s.Require().NoError(err)
		svc, err := New(s.store, WithLocation(berlin))
		s.Require().NoError(err)

		// 23:30 UTC is already the next day in Berlin.
		start, _ := svc.Window(time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC))
		s.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, berlin), start)
	})
}

// =============================================================================
// Reserve Tests
// =============================================================================

func (s *QuotaServiceSuite) TestReserve() {
	s.Run("missing user is rejected", func() {
		_, err := s.service.Reserve(s.ctx, s.tenant, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing tenant is rejected", func() {
		_, err := s.service.Reserve(s.ctx, "", s.user)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("each reservation consumes one unit", func() {
		r, err := s.service.Reserve(s.ctx, s.tenant, s.user)
		s.Require().NoError(err)
		s.Equal(testLimit-1, r.Result().Remaining)
		s.True(r.Result().Allowed)
		s.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), r.Result().ResetAt)
	})
}

func (s *QuotaServiceSuite) TestReserve_LimitExceeded() {
	s.exhaust(s.ctx)
	s.Zero(s.exceededEvents())

	_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(14*time.Hour, de.RetryAfter)

	s.Equal(1, s.exceededEvents(), "exactly one LIMIT_EXCEEDED per rejected query")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.QuotaRejections))

	evts := s.sink.Events()
	s.Equal(audit.SeverityCritical, evts[len(evts)-1].Severity)
	s.Equal("analyst-1", evts[len(evts)-1].Subject)
}

func (s *QuotaServiceSuite) TestReserve_Rollover() {
	s.exhaust(s.ctx)
	_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
	s.Require().Error(err)

	nextDay := s.at(time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC))
	r, err := s.service.Reserve(nextDay, s.tenant, s.user)
	s.Require().NoError(err)
	s.Equal(testLimit-1, r.Result().Remaining)
}

func (s *QuotaServiceSuite) TestReserve_UsersAreIndependent() {
	s.exhaust(s.ctx)

	_, err := s.service.Reserve(s.ctx, s.tenant, id.UserID("analyst-2"))
	s.NoError(err)
}

func (s *QuotaServiceSuite) TestReserve_TenantsAreIndependent() {
	s.exhaust(s.ctx)

	other := id.TenantID("T2")
	ctx := requestcontext.WithCaller(requestcontext.WithTime(context.Background(), requestcontext.Now(s.ctx)), other, s.user)

	s.Run("same user id in another tenant has its own quota", func() {
		r, err := s.service.Reserve(ctx, other, s.user)
		s.Require().NoError(err)
		s.Equal(testLimit-1, r.Result().Remaining)
	})

	s.Run("reads do not cross tenants", func() {
		res, err := s.service.CheckQueryLimit(ctx, other, s.user)
		s.Require().NoError(err)
		s.True(res.Allowed)

		res, err = s.service.CheckQueryLimit(s.ctx, s.tenant, s.user)
		s.Require().NoError(err)
		s.False(res.Allowed)
	})

	s.Run("reset only clears the named tenant", func() {
		s.Require().NoError(s.service.Reset(ctx, other, s.user))

		_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	})

	s.Require().NoError(s.bus.Flush(context.Background()))
	for _, evt := range s.sink.Events() {
		if evt.Type == audit.EventLimitExceeded {
			s.Equal("T1", evt.TenantID)
		}
	}
}

// =============================================================================
// Release Tests
// =============================================================================

func (s *QuotaServiceSuite) TestRelease() {
	s.Run("release returns the unit once", func() {
		r, err := s.service.Reserve(s.ctx, s.tenant, s.user)
		s.Require().NoError(err)

		s.Require().NoError(r.Release(s.ctx))
		s.Require().NoError(r.Release(s.ctx))

		res, err := s.service.CheckQueryLimit(s.ctx, s.tenant, s.user)
		s.Require().NoError(err)
		s.Equal(testLimit, res.Remaining)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.QuotaReleases))
	})

	s.Run("nil reservation is a no-op", func() {
		var r *Reservation
		s.NoError(r.Release(s.ctx))
	})

	s.Run("release after rollover does not touch the new window", func() {
		r, err := s.service.Reserve(s.ctx, s.tenant, s.user)
		s.Require().NoError(err)

		nextDay := s.at(time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC))
		_, err = s.service.Reserve(nextDay, s.tenant, s.user)
		s.Require().NoError(err)

		s.Require().NoError(r.Release(nextDay))
		res, err := s.service.CheckQueryLimit(nextDay, s.tenant, s.user)
		s.Require().NoError(err)
		s.Equal(testLimit-1, res.Remaining)
	})
}

// =============================================================================
// CheckQueryLimit Tests
// =============================================================================

func (s *QuotaServiceSuite) TestCheckQueryLimit() {
	s.Run("unknown user has the full quota", func() {
		res, err := s.service.CheckQueryLimit(s.ctx, s.tenant, id.UserID("fresh"))
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(testLimit, res.Remaining)
		s.Equal(testLimit, res.Limit)
	})

	s.Run("check does not consume", func() {
		for range testLimit + 2 {
			_, err := s.service.CheckQueryLimit(s.ctx, s.tenant, s.user)
			s.Require().NoError(err)
		}
		_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
		s.NoError(err)
	})

	s.Run("stale window counts as empty", func() {
		res, err := s.service.CheckQueryLimit(s.at(time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)), s.tenant, s.user)
		s.Require().NoError(err)
		s.Equal(testLimit, res.Remaining)
	})
}

func (s *QuotaServiceSuite) TestCheckQueryLimit_ExhaustedEmitsEvent() {
	s.exhaust(s.ctx)

	res, err := s.service.CheckQueryLimit(s.ctx, s.tenant, s.user)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Zero(res.Remaining)
	s.Equal(1, s.exceededEvents())
}

// =============================================================================
// Admin Tests
// =============================================================================

func (s *QuotaServiceSuite) TestReset() {
	s.exhaust(s.ctx)

	s.Require().NoError(s.service.Reset(s.ctx, s.tenant, s.user))

	_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
	s.NoError(err)

	s.Require().NoError(s.bus.Flush(context.Background()))
	s.Equal(1, s.sink.Count(audit.EventQuotaReset))
}

func (s *QuotaServiceSuite) TestPrune() {
	_, err := s.service.Reserve(s.ctx, s.tenant, s.user)
	s.Require().NoError(err)

	n, err := s.service.Prune(s.at(time.Date(2026, 3, 17, 1, 0, 0, 0, time.UTC)))
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Zero(s.store.Len())
}
