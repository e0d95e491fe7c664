// Package identity derives anonymous vehicle identifiers. It is the only
// component that ever sees a raw VIN.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"anonid/internal/audit"
	"anonid/internal/temporal"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	events "anonid/pkg/platform/audit"
	"anonid/pkg/platform/observability"
	"anonid/pkg/platform/privacy"
	"anonid/pkg/requestcontext"
)

// MinSecretLength is the minimum accepted hashing secret length in bytes.
const MinSecretLength = 32

const idHexLength = 20

// DigestFunc computes a cryptographic digest of payload.
type DigestFunc func(payload []byte) ([]byte, error)

// SHA256 is the default digest.
func SHA256(payload []byte) ([]byte, error) {
	sum := sha256.Sum256(payload)
	return sum[:], nil
}

// AuditTrail records hashing attempts.
type AuditTrail interface {
	Append(ctx context.Context, e audit.Entry) audit.Entry
}

// Hasher derives deterministic, tenant- and window-scoped anonymous IDs.
type Hasher struct {
	secret    string
	windows   *temporal.Calculator
	trail     AuditTrail
	publisher events.SecurityPublisher
	digest    DigestFunc
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

type Option func(*Hasher)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hasher) {
		h.logger = logger
	}
}

func WithPublisher(p events.SecurityPublisher) Option {
	return func(h *Hasher) {
		h.publisher = p
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Hasher) {
		h.metrics = m
	}
}

// WithDigest replaces SHA-256. Intended for exercising the failure path.
func WithDigest(fn DigestFunc) Option {
	return func(h *Hasher) {
		if fn != nil {
			h.digest = fn
		}
	}
}

// WithClock sets the clock used to measure execution time.
func WithClock(now func() time.Time) Option {
	return func(h *Hasher) {
		h.now = now
	}
}

func NewHasher(secret string, windows *temporal.Calculator, trail AuditTrail, opts ...Option) (*Hasher, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("hashing secret must be at least %d bytes", MinSecretLength)
	}
	if windows == nil {
		return nil, errors.New("window calculator is required")
	}
	if trail == nil {
		return nil, errors.New("audit trail is required")
	}
	h := &Hasher{
		secret:  secret,
		windows: windows,
		trail:   trail,
		digest:  SHA256,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Resolve derives the anonymous ID for vin within tenantID and the temporal
// window containing requestcontext.Now(ctx).
//
// Invalid input fails before any hashing or auditing. Every hashing attempt
// is audited: HASH_CREATE on success, HASH_FAILED with a sanitized detail on
// internal failure, in which case a generic internal error is returned.
func (h *Hasher) Resolve(ctx context.Context, vin VIN, tenantID id.TenantID, userID id.UserID) (id.AnonymousVehicleID, error) {
	normalized, err := vin.Normalize()
	if err != nil {
		return "", err
	}
	if tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if userID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	window := h.windows.Current(requestcontext.Now(ctx))
	start := h.now()
	anonID, failure := h.derive(normalized, tenantID, window.Label)
	elapsed := h.now().Sub(start)

	entry := audit.Entry{
		TraceID:         requestcontext.RequestID(ctx),
		Accessor:        userID,
		TenantID:        tenantID,
		MaskedReference: privacy.Mask(normalized),
		TimeContext:     window.Label,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}

	if failure != nil {
		safe := privacy.Sanitize(failure.err, failure.stack, append(vin.secrets(), h.secret)...)
		entry.Action = audit.ActionHashFailed
		entry.Status = audit.StatusDenied
		entry.Detail = safe
		h.trail.Append(ctx, entry)
		h.metrics.observe("failed", elapsed.Seconds())
		observability.LogAudit(ctx, h.logger, h.publisher,
			events.EventHashFailed, events.SeverityCritical, "identity hashing failed",
			"user_id", userID,
			"tenant_id", tenantID.String(),
			"masked_reference", entry.MaskedReference,
			"window", window.Label,
			"error", safe.Message(),
		)
		return "", dErrors.New(dErrors.CodeInternal, "identity resolution failed")
	}

	entry.Action = audit.ActionHashCreate
	entry.Status = audit.StatusAuthorized
	h.trail.Append(ctx, entry)
	h.metrics.observe("created", elapsed.Seconds())
	observability.LogAudit(ctx, h.logger, h.publisher,
		events.EventHashCreate, events.SeverityInfo, "anonymous identity derived",
		"user_id", userID,
		"tenant_id", tenantID.String(),
		"masked_reference", entry.MaskedReference,
		"window", window.Label,
		"execution_time_ms", entry.ExecutionTimeMs,
	)
	return anonID, nil
}

// Window returns the temporal window Resolve would use for ctx.
func (h *Hasher) Window(ctx context.Context) temporal.Window {
	return h.windows.Current(requestcontext.Now(ctx))
}

type digestFailure struct {
	err   error
	stack []byte
}

func (h *Hasher) derive(vin string, tenantID id.TenantID, label string) (anonID id.AnonymousVehicleID, failure *digestFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &digestFailure{err: fmt.Errorf("digest panic: %v", r), stack: debug.Stack()}
		}
	}()

	payload := make([]byte, 0, len(vin)+len(tenantID)+len(h.secret)+len(label))
	payload = append(payload, vin...)
	payload = append(payload, tenantID...)
	payload = append(payload, h.secret...)
	payload = append(payload, label...)

	sum, err := h.digest(payload)
	if err != nil {
		return "", &digestFailure{err: err, stack: debug.Stack()}
	}
	if len(sum)*2 < idHexLength {
		return "", &digestFailure{err: fmt.Errorf("digest too short: %d bytes", len(sum))}
	}
	return formatID(hex.EncodeToString(sum)[:idHexLength]), nil
}

// formatID groups 20 hex characters as 8-4-8.
func formatID(h string) id.AnonymousVehicleID {
	return id.AnonymousVehicleID(h[0:8] + "-" + h[8:12] + "-" + h[12:20])
}
