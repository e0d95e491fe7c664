package observability

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "anonid/pkg/domain"
	"anonid/pkg/platform/audit"
	"anonid/pkg/requestcontext"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (c *capturePublisher) Emit(_ context.Context, e audit.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestLogAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	pub := &capturePublisher{}
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	LogAudit(ctx, logger, pub, audit.EventLimitExceeded, audit.SeverityCritical, "daily query limit exceeded",
		"user_id", id.UserID("analyst-1"),
		"tenant_id", "T1",
	)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, audit.EventLimitExceeded, e.Type)
	assert.Equal(t, "analyst-1", e.Subject)
	assert.Equal(t, "T1", e.TenantID)
	assert.Equal(t, "req-42", e.RequestID)

	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"log_type":"audit"`)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestLogAudit_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		LogAudit(context.Background(), nil, nil, audit.EventQuotaReset, audit.SeverityInfo, "reset")
	})
}
