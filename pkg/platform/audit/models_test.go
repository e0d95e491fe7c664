package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType(" screen_capture ")
	require.NoError(t, err)
	assert.Equal(t, EventScreenCapture, got)

	for _, bad := range []string{"", "screen capture", "1ABC", "DROP;TABLE"} {
		_, err := ParseEventType(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSeverity(t *testing.T) {
	got, err := ParseSeverity("critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, got)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestEventType_Category(t *testing.T) {
	assert.Equal(t, CategoryOperations, EventHashCreate.Category())
	assert.Equal(t, CategorySecurity, EventLimitExceeded.Category())
	assert.Equal(t, CategorySecurity, EventType("CUSTOM_SIGNAL").Category())
}

func TestEventType_EngineOwned(t *testing.T) {
	for _, owned := range []EventType{
		EventLimitExceeded, EventHashCreate, EventHashFailed, EventCorrelationBlocked, EventQuotaReset,
	} {
		assert.True(t, owned.EngineOwned(), owned)
	}
	assert.False(t, EventScreenCapture.EngineOwned())
	assert.False(t, EventType("CUSTOM_SIGNAL").EngineOwned())
}
