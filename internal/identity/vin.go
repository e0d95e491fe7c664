package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	dErrors "anonid/pkg/domain-errors"
	"anonid/pkg/platform/privacy"
)

// VINLength is the exact length of a normalized vehicle identification number.
const VINLength = 17

// VIN carries a raw vehicle identification number. Every way of rendering it
// (fmt verbs, slog, JSON, text encoding) yields the masked reference, so a
// VIN cannot leak through logging or serialization by accident.
type VIN struct {
	raw string
}

// NewVIN wraps raw without validating it. Validation happens in Normalize.
func NewVIN(raw string) VIN {
	return VIN{raw: raw}
}

// IsZero reports whether no value was supplied.
func (v VIN) IsZero() bool {
	return strings.TrimSpace(v.raw) == ""
}

// Normalize trims and uppercases the VIN and checks its length.
func (v VIN) Normalize() (string, error) {
	n := strings.ToUpper(strings.TrimSpace(v.raw))
	if n == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "vin is required")
	}
	if utf8.RuneCountInString(n) != VINLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "vin must be exactly 17 characters")
	}
	return n, nil
}

// Masked returns the display-safe reference for the normalized VIN.
func (v VIN) Masked() privacy.MaskedRef {
	return privacy.Mask(strings.ToUpper(v.raw))
}

func (v VIN) String() string {
	return v.Masked().String()
}

func (v VIN) GoString() string {
	return fmt.Sprintf("identity.VIN(%q)", v.Masked().String())
}

// Format covers %v, %+v, %#v, %s, %q and every other verb.
func (v VIN) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('#') {
			fmt.Fprint(f, v.GoString())
			return
		}
		fmt.Fprint(f, v.String())
	case 'q':
		fmt.Fprintf(f, "%q", v.String())
	default:
		fmt.Fprint(f, v.String())
	}
}

func (v VIN) LogValue() slog.Value {
	return slog.StringValue(v.String())
}

func (v VIN) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v VIN) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalText accepts the raw value from request payloads.
func (v *VIN) UnmarshalText(b []byte) error {
	v.raw = string(b)
	return nil
}

func (v *VIN) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "vin must be a string")
	}
	v.raw = s
	return nil
}

// secrets lists the values that must be scrubbed from any failure detail
// produced while handling v.
func (v VIN) secrets() []string {
	trimmed := strings.TrimSpace(v.raw)
	return []string{trimmed, strings.ToUpper(trimmed)}
}
