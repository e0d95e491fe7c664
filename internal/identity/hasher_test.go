package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"anonid/internal/audit"
	"anonid/internal/temporal"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	events "anonid/pkg/platform/audit"
	"anonid/pkg/platform/audit/publishers/security"
	"anonid/pkg/requestcontext"
)

const testSecret = "unit-test-secret-0123456789abcdefghij"

// =============================================================================
// Identity Hasher Test Suite
// =============================================================================
// Justification for unit tests: determinism and isolation are hard contracts
// of the anonymous ID, and the failure path can only be reached by injecting a
// faulty digest. Expected IDs are fixed so any change to the derivation is
// caught.

type HasherSuite struct {
	suite.Suite
	trail  *audit.Trail
	sink   *security.MemorySink
	bus    *security.Publisher
	hasher *Hasher
	h1     context.Context
	h2     context.Context
}

func TestHasherSuite(t *testing.T) {
	suite.Run(t, new(HasherSuite))
}

func (s *HasherSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.trail = audit.NewTrail(audit.WithLogger(logger))
	s.sink = security.NewMemorySink()
	bus, err := security.New(s.sink, security.WithLogger(logger), security.WithScrubSecrets(testSecret))
	s.Require().NoError(err)
	s.bus = bus
	s.hasher = s.newHasher()

	s.h1 = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	s.h2 = requestcontext.WithTime(context.Background(), time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC))
}

func (s *HasherSuite) newHasher(opts ...Option) *Hasher {
	windows, err := temporal.New()
	s.Require().NoError(err)
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublisher(s.bus),
	}, opts...)
	h, err := NewHasher(testSecret, windows, s.trail, opts...)
	s.Require().NoError(err)
	return h
}

func (s *HasherSuite) flushedEvents() []events.SecurityEvent {
	s.Require().NoError(s.bus.Flush(context.Background()))
	return s.sink.Events()
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *HasherSuite) TestNewHasher() {
	windows, err := temporal.New()
	s.Require().NoError(err)

	s.Run("short secret is rejected", func() {
		_, err := NewHasher("too-short", windows, s.trail)
		s.ErrorContains(err, "hashing secret")
	})

	s.Run("nil window calculator is rejected", func() {
		_, err := NewHasher(testSecret, nil, s.trail)
		s.ErrorContains(err, "window calculator is required")
	})

	s.Run("nil trail is rejected", func() {
		_, err := NewHasher(testSecret, windows, nil)
		s.ErrorContains(err, "audit trail is required")
	})
}

// =============================================================================
// Derivation Tests
// =============================================================================
// Justification: the anonymous ID must be byte-identical across calls and
// differ across tenants and windows.

func (s *HasherSuite) TestResolve_WorkedExample() {
	x, err := s.hasher.Resolve(s.h1, NewVIN("WBA12345678901234"), "T1", "analyst-1")
	s.Require().NoError(err)
	s.Equal(id.AnonymousVehicleID("85db13fa-209b-f2bf82dd"), x)

	y, err := s.hasher.Resolve(s.h1, NewVIN("WBA12345678901234"), "T2", "analyst-1")
	s.Require().NoError(err)
	s.Equal(id.AnonymousVehicleID("8075ae2d-28a9-0ab0a984"), y)
	s.NotEqual(x, y)

	_, err = s.hasher.Resolve(s.h1, NewVIN("SHORT123"), "T1", "analyst-1")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Len(s.trail.Get(0), 2, "validation failures must not create audit entries")
}

func (s *HasherSuite) TestResolve_Determinism() {
	first, err := s.hasher.Resolve(s.h1, NewVIN(rawVIN), "T1", "analyst-1")
	s.Require().NoError(err)
	for range 5 {
		again, err := s.hasher.Resolve(s.h1, NewVIN(" wba12345678901234 "), "T1", "analyst-2")
		s.Require().NoError(err)
		s.Equal(first, again, "normalization and accessor must not affect the ID")
	}
	_, err = id.ParseAnonymousVehicleID(first.String())
	s.NoError(err)
}

func (s *HasherSuite) TestResolve_TemporalIsolation() {
	h1, err := s.hasher.Resolve(s.h1, NewVIN(rawVIN), "T1", "analyst-1")
	s.Require().NoError(err)
	h2, err := s.hasher.Resolve(s.h2, NewVIN(rawVIN), "T1", "analyst-1")
	s.Require().NoError(err)

	s.Equal(id.AnonymousVehicleID("537c8b44-95e8-64ce9078"), h2)
	s.NotEqual(h1, h2)

	entries := s.trail.Get(0)
	s.Equal("2026_H2", entries[0].TimeContext)
	s.Equal("2026_H1", entries[1].TimeContext)
}

func (s *HasherSuite) TestResolve_RequiresCaller() {
	_, err := s.hasher.Resolve(s.h1, NewVIN(rawVIN), "", "analyst-1")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = s.hasher.Resolve(s.h1, NewVIN(rawVIN), "T1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal(0, s.trail.Len())
}

// =============================================================================
// Audit and Event Tests
// =============================================================================

func (s *HasherSuite) TestResolve_AuditsSuccess() {
	ctx := requestcontext.WithRequestID(s.h1, "req-7")
	_, err := s.hasher.Resolve(ctx, NewVIN(rawVIN), "T1", "analyst-1")
	s.Require().NoError(err)

	entries := s.trail.Get(0)
	s.Require().Len(entries, 1)
	e := entries[0]
	s.Equal(audit.ActionHashCreate, e.Action)
	s.Equal(audit.StatusAuthorized, e.Status)
	s.Equal("WBA****34", e.MaskedReference.String())
	s.Equal(id.TenantID("T1"), e.TenantID)
	s.Equal(id.UserID("analyst-1"), e.Accessor)
	s.Equal("req-7", e.TraceID)
	s.True(e.Detail.IsZero())

	evts := s.flushedEvents()
	s.Require().Len(evts, 1)
	s.Equal(events.EventHashCreate, evts[0].Type)
	s.Equal(events.SeverityInfo, evts[0].Severity)
}

func (s *HasherSuite) TestResolve_FailurePathLeaksNothing() {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	s.Run("digest error", func() {
		s.SetupTest()
		hasher := s.newHasher(WithMetrics(metrics), WithDigest(func(payload []byte) ([]byte, error) {
			return nil, errors.New("hsm rejected payload " + string(payload))
		}))
		s.assertSanitizedFailure(hasher)
	})

	s.Run("digest panic", func() {
		s.SetupTest()
		hasher := s.newHasher(WithMetrics(metrics), WithDigest(func(payload []byte) ([]byte, error) {
			panic("corrupt state for " + strings.ToLower(string(payload)))
		}))
		s.assertSanitizedFailure(hasher)
	})

	s.Equal(float64(2), testutil.ToFloat64(metrics.Resolutions.WithLabelValues("failed")))
}

func (s *HasherSuite) assertSanitizedFailure(hasher *Hasher) {
	anonID, err := hasher.Resolve(s.h1, NewVIN(rawVIN), "T1", "analyst-1")
	s.Empty(anonID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.NotContains(err.Error(), rawVIN)

	entries := s.trail.Get(0)
	s.Require().Len(entries, 1)
	e := entries[0]
	s.Equal(audit.ActionHashFailed, e.Action)
	s.Equal(audit.StatusDenied, e.Status)
	s.False(e.Detail.IsZero())
	s.LessOrEqual(len(e.Detail.Stack()), 100)
	for _, leaked := range []string{rawVIN, strings.ToLower(rawVIN), testSecret} {
		s.NotContains(e.Detail.Message(), leaked)
		s.NotContains(e.Detail.Stack(), leaked)
	}

	evts := s.flushedEvents()
	s.Require().Len(evts, 1)
	s.Equal(events.EventHashFailed, evts[0].Type)
	s.Equal(events.SeverityCritical, evts[0].Severity)
	s.NotContains(evts[0].Message, rawVIN)
}
