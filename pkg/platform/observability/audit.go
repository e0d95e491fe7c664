// Package observability provides the audit logging helper shared by the
// engine's services.
package observability

import (
	"context"
	"log/slog"

	"anonid/pkg/attrs"
	"anonid/pkg/platform/audit"
	"anonid/pkg/requestcontext"
)

// LogAudit logs an audit line and mirrors it to the security event bus.
// The subject is taken from the first of user_id, tenant_id or identifier
// found in attrList.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher audit.SecurityPublisher,
	eventType audit.EventType, severity audit.Severity, message string, attrList ...any,
) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", string(eventType), "severity", string(severity), "log_type", "audit")

	if logger != nil {
		logger.Log(ctx, levelFor(severity), message, args...)
	}

	if publisher == nil {
		return
	}

	publisher.Emit(ctx, audit.SecurityEvent{
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Subject:   attrs.FirstString(attrList, "user_id", "identifier"),
		TenantID:  attrs.ExtractString(attrList, "tenant_id"),
		RequestID: requestID,
	})
}

func levelFor(s audit.Severity) slog.Level {
	switch s {
	case audit.SeverityCritical:
		return slog.LevelError
	case audit.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
