package security

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "anonid/pkg/platform/audit"
)

// Sink receives batches of security events from the publisher worker.
type Sink interface {
	Write(ctx context.Context, events []audit.SecurityEvent) error
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, events []audit.SecurityEvent) error {
	for _, e := range events {
		s.logger.Log(ctx, levelFor(e.Severity), "security event",
			"event_id", e.ID,
			"type", string(e.Type),
			"category", string(e.Category),
			"severity", string(e.Severity),
			"message", e.Message,
			"subject", e.Subject,
			"tenant_id", e.TenantID,
			"request_id", e.RequestID,
			"timestamp", e.Timestamp,
		)
	}
	return nil
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

// FanOut writes each batch to every sink. All sinks are attempted; the
// returned error joins the individual failures.
type FanOut []Sink

func (f FanOut) Write(ctx context.Context, events []audit.SecurityEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Write(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps every written event. Used by tests and local development.
type MemorySink struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, events []audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of every event written so far.
func (s *MemorySink) Events() []audit.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many events of the given type were written.
func (s *MemorySink) Count(t audit.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
