// Package correlation guards against mosaic re-identification: many narrow,
// individually anonymous lookups against the same vehicle segment. Each
// (tenant, segment) pair carries a query density that decays exponentially;
// lookups are refused once the derived risk score passes the threshold.
package correlation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"anonid/internal/correlation/metrics"
	"anonid/internal/correlation/models"
	"anonid/internal/correlation/ports"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	"anonid/pkg/platform/audit"
	"anonid/pkg/platform/observability"
	"anonid/pkg/requestcontext"
)

const (
	DefaultThreshold  = 95
	DefaultHalfLife   = time.Hour
	DefaultSaturation = 10.0
)

type (
	Store          = ports.CorrelationStore
	AuditPublisher = audit.SecurityPublisher
)

type Engine struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	threshold      int
	halfLife       time.Duration
	saturation     float64
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithThreshold sets the score above which lookups are blocked.
func WithThreshold(score int) Option {
	return func(e *Engine) {
		e.threshold = score
	}
}

// WithHalfLife sets how quickly recorded activity fades.
func WithHalfLife(d time.Duration) Option {
	return func(e *Engine) {
		e.halfLife = d
	}
}

// WithSaturation sets the density at which risk reaches 63.
func WithSaturation(density float64) Option {
	return func(e *Engine) {
		e.saturation = density
	}
}

func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("correlation store is required")
	}

	e := &Engine{
		store:      store,
		logger:     slog.Default(),
		threshold:  DefaultThreshold,
		halfLife:   DefaultHalfLife,
		saturation: DefaultSaturation,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.threshold < 0 || e.threshold > 100:
		return nil, errors.New("risk threshold must be within 0..100")
	case e.halfLife <= 0:
		return nil, errors.New("half-life must be positive")
	case e.saturation <= 0:
		return nil, errors.New("saturation must be positive")
	}
	return e, nil
}

// Threshold returns the configured blocking threshold.
func (e *Engine) Threshold() int { return e.threshold }

// RecordActivity counts one successful resolution against the pair.
func (e *Engine) RecordActivity(ctx context.Context, tenantID id.TenantID, segment id.Segment) error {
	if err := validate(tenantID, segment); err != nil {
		return err
	}
	if _, err := e.store.Add(ctx, tenantID, segment.Key(), requestcontext.Now(ctx), e.halfLife); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record correlation activity")
	}
	e.metrics.IncrementActivity()
	return nil
}

// ComputeRisk scores the pair's current decayed density on 0..100.
func (e *Engine) ComputeRisk(ctx context.Context, tenantID id.TenantID, segment id.Segment) (int, error) {
	if err := validate(tenantID, segment); err != nil {
		return 0, err
	}
	rec, err := e.store.Get(ctx, tenantID, segment.Key())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read correlation state")
	}
	if rec == nil {
		return 0, nil
	}
	return models.Risk(rec.DensityAt(requestcontext.Now(ctx), e.halfLife), e.saturation), nil
}

// Check refuses the lookup when the pair's risk exceeds the threshold and
// emits CORRELATION_BLOCKED.
func (e *Engine) Check(ctx context.Context, tenantID id.TenantID, segment id.Segment) error {
	risk, err := e.ComputeRisk(ctx, tenantID, segment)
	if err != nil {
		e.metrics.IncrementChecks("error")
		return err
	}
	e.metrics.ObserveRisk(risk)

	if risk <= e.threshold {
		e.metrics.IncrementChecks("allowed")
		return nil
	}

	e.metrics.IncrementChecks("blocked")
	observability.LogAudit(ctx, e.logger, e.auditPublisher,
		audit.EventCorrelationBlocked, audit.SeverityCritical, "lookup blocked by correlation guard",
		"tenant_id", tenantID.String(),
		"user_id", requestcontext.UserID(ctx),
		"segment", segment.Key().String(),
		"risk", risk,
		"threshold", e.threshold,
	)
	return dErrors.New(dErrors.CodeCorrelationRisk, "query pattern too narrow, try again later")
}

// Prune drops pairs idle long enough that their density is negligible.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-models.IdleAfter(e.halfLife))
	n, err := e.store.PruneIdle(ctx, cutoff)
	if err != nil {
		return n, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prune correlation records")
	}
	return n, nil
}

func validate(tenantID id.TenantID, segment id.Segment) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "tenant_id is required")
	}
	if segment.Brand == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "segment brand is required")
	}
	return nil
}
