package privacy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const vin = "WBA12345678901234"

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"standard vin", vin, "WBA****34"},
		{"surrounding whitespace", "  " + vin + " ", "WBA****34"},
		{"short input collapses", "SHORT123", "****"},
		{"empty input is zero", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.raw).String())
		})
	}
}

func TestMaskNeverRevealsMoreThanPrefixAndSuffix(t *testing.T) {
	m := Mask(vin).String()
	for i := 0; i+6 <= len(vin); i++ {
		assert.NotContains(t, m, vin[i:i+6])
	}
}

func TestScrub(t *testing.T) {
	t.Run("removes exact secret case-insensitively", func(t *testing.T) {
		out := Scrub("digest failed for wba12345678901234 in tenant T1", vin)
		assert.NotContains(t, strings.ToUpper(out), vin)
		assert.Contains(t, out, redacted)
		assert.Contains(t, out, "tenant T1")
	})

	t.Run("removes unknown vin-shaped tokens", func(t *testing.T) {
		out := Scrub("lookup of 1HGCM82633A004352 failed")
		assert.NotContains(t, out, "1HGCM82633A004352")
	})

	t.Run("keeps long words without digits", func(t *testing.T) {
		out := Scrub("InternalServerErrorHandlerFactory")
		assert.Equal(t, "InternalServerErrorHandlerFactory", out)
	})

	t.Run("short secrets are ignored", func(t *testing.T) {
		assert.Equal(t, "T1 ok", Scrub("T1 ok", "T1"))
	})
}

func TestSanitize(t *testing.T) {
	stack := []byte("goroutine 1 [running]:\nanonid/internal/identity.digest(" + vin + ")\n" + strings.Repeat("frame\n", 50))
	safe := Sanitize(errors.New("hash of "+vin+" exploded"), stack, vin)

	assert.NotContains(t, safe.Message(), vin)
	assert.NotContains(t, safe.Stack(), vin)
	assert.LessOrEqual(t, len(safe.Stack()), MaxStackLength)
	assert.False(t, safe.IsZero())
	assert.EqualError(t, safe.Err(), safe.Message())
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0/24", AnonymizeIP("203.0.113.77"))
	assert.Equal(t, "2001:db8:abcd::/48", AnonymizeIP("2001:db8:abcd:12::1"))
	assert.Equal(t, "", AnonymizeIP("not-an-ip"))
}
