package audit

import (
	"regexp"
	"strings"
	"time"

	dErrors "anonid/pkg/domain-errors"
)

// EventType names a security signal. The engine emits the constants below;
// surrounding applications may report their own types, which are carried
// through opaquely.
type EventType string

const (
	EventScreenCapture      EventType = "SCREEN_CAPTURE"
	EventLimitExceeded      EventType = "LIMIT_EXCEEDED"
	EventHashCreate         EventType = "HASH_CREATE"
	EventHashFailed         EventType = "HASH_FAILED"
	EventCorrelationBlocked EventType = "CORRELATION_BLOCKED"
	EventQuotaReset         EventType = "QUOTA_RESET"
)

var eventTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// ParseEventType validates an externally reported event type.
func ParseEventType(s string) (EventType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !eventTypePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "event type is malformed")
	}
	return EventType(s), nil
}

// EngineOwned reports whether t is emitted only by the engine's own
// governance stages. Such types are never accepted from clients.
func (t EventType) EngineOwned() bool {
	switch t {
	case EventLimitExceeded, EventHashCreate, EventHashFailed, EventCorrelationBlocked, EventQuotaReset:
		return true
	default:
		return false
	}
}

// EventCategory classifies events for routing. Security events feed SIEM and
// alerting; operations events are routine activity.
type EventCategory string

const (
	CategorySecurity   EventCategory = "security"
	CategoryOperations EventCategory = "operations"
)

// Category returns the routing category for t. Unknown types are treated as
// security signals.
func (t EventType) Category() EventCategory {
	switch t {
	case EventHashCreate, EventQuotaReset:
		return CategoryOperations
	default:
		return CategorySecurity
	}
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity accepts the three levels case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToUpper(strings.TrimSpace(s))); sev {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return sev, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "severity must be INFO, WARNING or CRITICAL")
}

// SecurityEvent is a single entry on the security event bus. Message is always
// scrubbed before the event is built; Subject holds a tenant or user id, never a
// vehicle identifier.
type SecurityEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Category  EventCategory `json:"category"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Subject   string        `json:"subject,omitempty"`
	TenantID  string        `json:"tenant_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
