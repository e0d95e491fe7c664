// Package privacy is the only place where raw identifiers are turned into
// values that may reach logs, audit entries or error payloads.
//
// MaskedRef and SafeError have unexported fields, so code outside this package
// can obtain them only through Mask and Sanitize. Sinks that accept these types
// are therefore guaranteed to receive scrubbed content.
package privacy

import (
	"strings"
	"unicode/utf8"
)

const (
	maskFill    = "****"
	keepPrefix  = 3
	keepSuffix  = 2
	minMaskable = 10
)

// MaskedRef is the display form of a raw identifier: the first three and last
// two characters around a fixed fill.
type MaskedRef struct {
	value string
}

// Mask builds the masked reference for raw. Inputs too short to keep five
// characters without revealing most of the value collapse to the fill.
func Mask(raw string) MaskedRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MaskedRef{}
	}
	if utf8.RuneCountInString(raw) < minMaskable {
		return MaskedRef{value: maskFill}
	}
	r := []rune(raw)
	return MaskedRef{value: string(r[:keepPrefix]) + maskFill + string(r[len(r)-keepSuffix:])}
}

func (m MaskedRef) String() string { return m.value }

// IsZero reports whether no identifier was masked.
func (m MaskedRef) IsZero() bool { return m.value == "" }

// MarshalText renders the masked value for JSON and text encoders.
func (m MaskedRef) MarshalText() ([]byte, error) {
	return []byte(m.value), nil
}
