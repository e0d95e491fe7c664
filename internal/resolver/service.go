// Package resolver runs the identity resolution pipeline: quota, correlation
// guard, hashing and activity recording, committing nothing when an earlier
// stage refuses.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"anonid/internal/audit"
	"anonid/internal/ratelimit/models"
	"anonid/internal/resolver/metrics"
	"anonid/internal/resolver/ports"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	events "anonid/pkg/platform/audit"
	"anonid/pkg/platform/privacy"
	"anonid/pkg/requestcontext"
)

const tracerName = "anonid/internal/resolver"

// releaseTimeout bounds quota release after the caller has gone away.
const releaseTimeout = 2 * time.Second

type Service struct {
	quota       ports.QuotaPort
	correlation ports.CorrelationPort
	hasher      ports.HasherPort
	trail       ports.AuditLogPort
	signals     ports.SignalPort
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSignalPublisher sets where ReportSignal forwards client signals.
func WithSignalPublisher(p ports.SignalPort) Option {
	return func(s *Service) {
		s.signals = p
	}
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func New(quota ports.QuotaPort, correlation ports.CorrelationPort, hasher ports.HasherPort, trail ports.AuditLogPort, opts ...Option) (*Service, error) {
	switch {
	case quota == nil:
		return nil, errors.New("quota guard is required")
	case correlation == nil:
		return nil, errors.New("correlation engine is required")
	case hasher == nil:
		return nil, errors.New("identity hasher is required")
	case trail == nil:
		return nil, errors.New("audit trail is required")
	}

	s := &Service{
		quota:       quota,
		correlation: correlation,
		hasher:      hasher,
		trail:       trail,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ResolveIdentity returns the anonymous ID for req.VIN within the caller's
// tenant and the current temporal window.
//
// Stages run in order and stop at the first refusal: quota reservation,
// correlation check, hashing, activity recording. A reservation taken by the
// first stage is released if any later stage fails.
func (s *Service) ResolveIdentity(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	// Pin the request time so the hasher's window and the reported window agree
	// even across a boundary.
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))

	ctx, span := s.tracer.Start(ctx, "resolver.ResolveIdentity", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID.String()),
	))
	defer span.End()

	result, outcome, err := s.resolve(ctx, req)
	s.metrics.ObserveRequest(outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("window", result.Window))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *Service) resolve(ctx context.Context, req Request) (*Result, string, error) {
	if req.TenantID.IsNil() || req.UserID.IsNil() {
		return nil, "unauthorized", dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	// Correlation keys are built from the normalized segment.
	segment, err := id.NewSegment(req.Segment.Brand, req.Segment.Model)
	if err != nil {
		return nil, "invalid", err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("segment", segment.Key().String()))
	if _, err := req.VIN.Normalize(); err != nil {
		return nil, "invalid", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "cancelled", dErrors.Wrap(err, dErrors.CodeBadRequest, "request cancelled")
	}

	reservation, err := s.quota.Reserve(ctx, req.TenantID, req.UserID)
	if err != nil {
		return nil, outcomeFor(err), err
	}

	if err := s.correlation.Check(ctx, req.TenantID, segment); err != nil {
		s.release(ctx, reservation)
		return nil, outcomeFor(err), err
	}

	if err := ctx.Err(); err != nil {
		s.release(ctx, reservation)
		return nil, "cancelled", dErrors.Wrap(err, dErrors.CodeBadRequest, "request cancelled")
	}

	anonID, err := s.hasher.Resolve(ctx, req.VIN, req.TenantID, req.UserID)
	if err != nil {
		s.release(ctx, reservation)
		return nil, outcomeFor(err), err
	}

	// The audit entry is already committed; a store hiccup here only loses one
	// unit of density.
	if err := s.correlation.RecordActivity(context.WithoutCancel(ctx), req.TenantID, segment); err != nil {
		s.logger.WarnContext(ctx, "failed to record correlation activity",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", req.TenantID.String(),
			"segment", segment.Key().String(),
			"error", err,
		)
	}

	return &Result{
		AnonymousID: anonID,
		Window:      s.hasher.Window(ctx).Label,
	}, "resolved", nil
}

func (s *Service) release(ctx context.Context, r ports.Reservation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.Release(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to release quota reservation",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func outcomeFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeQuotaExceeded:
		return "quota_exceeded"
	case dErrors.CodeCorrelationRisk:
		return "correlation_blocked"
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return "invalid"
	default:
		return "error"
	}
}

// GetAuditLog returns up to limit audit entries, most recent first.
func (s *Service) GetAuditLog(limit int) []audit.Entry {
	return s.trail.Get(limit)
}

// CheckQuota reports a user's remaining queries within a tenant without
// consuming one.
func (s *Service) CheckQuota(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.QuotaResult, error) {
	return s.quota.CheckQueryLimit(ctx, tenantID, userID)
}

// ResetQuota clears a user's quota within a tenant for the current day.
// Operator use only.
func (s *Service) ResetQuota(ctx context.Context, tenantID id.TenantID, userID id.UserID) error {
	return s.quota.Reset(ctx, tenantID, userID)
}

// ReportSignal forwards a client-side security signal, such as a screen
// capture, to the security event bus. The message is scrubbed before it is
// logged or published. Types the engine emits itself are refused.
func (s *Service) ReportSignal(ctx context.Context, sig Signal) error {
	eventType, err := events.ParseEventType(sig.Type)
	if err != nil {
		return err
	}
	if eventType.EngineOwned() {
		return dErrors.New(dErrors.CodeInvalidInput, "event type is reserved")
	}
	severity, err := events.ParseSeverity(sig.Severity)
	if err != nil {
		return err
	}
	message := privacy.Scrub(sig.Message)

	s.metrics.IncrementSignals(string(severity))
	s.logger.InfoContext(ctx, "security signal reported",
		"request_id", requestcontext.RequestID(ctx),
		"event", string(eventType),
		"severity", string(severity),
		"tenant_id", requestcontext.TenantID(ctx).String(),
	)
	if s.signals != nil {
		s.signals.Emit(ctx, events.SecurityEvent{
			Type:     eventType,
			Severity: severity,
			Message:  message,
		})
	}
	return nil
}
