package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_HalfYearLabels(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"first instant of year", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026_H1"},
		{"last instant of june", time.Date(2026, 6, 30, 23, 59, 59, 999, time.UTC), "2026_H1"},
		{"first instant of july", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), "2026_H2"},
		{"new year's eve", time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), "2026_H2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Label(tt.at))
		})
	}
}

func TestCurrent_ConfigurableLength(t *testing.T) {
	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		months int
		want   string
	}{
		{1, "2026_M08"},
		{2, "2026_B4"},
		{3, "2026_Q3"},
		{4, "2026_T2"},
		{6, "2026_H2"},
		{12, "2026"},
	}
	for _, tt := range tests {
		c, err := New(WithMonths(tt.months))
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Label(at), "months=%d", tt.months)
	}
}

func TestNew_RejectsUnevenLength(t *testing.T) {
	for _, n := range []int{0, 5, 7, 13, -6} {
		_, err := New(WithMonths(n))
		assert.Error(t, err, "months=%d", n)
	}
}

func TestBounds(t *testing.T) {
	c, err := New(WithMonths(3))
	require.NoError(t, err)

	w := c.Current(time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))
}

func TestCurrent_UsesConfiguredLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	c, err := New(WithLocation(berlin))
	require.NoError(t, err)

	// 23:30 UTC on June 30th is already July 1st in Berlin.
	at := time.Date(2026, 6, 30, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026_H2", c.Label(at))

	utc, err := New()
	require.NoError(t, err)
	assert.Equal(t, "2026_H1", utc.Label(at))
}
