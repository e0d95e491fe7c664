package privacy

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// MaxStackLength bounds how much of a scrubbed stack trace is retained.
const MaxStackLength = 100

const redacted = "[REDACTED]"

// vinShapedToken matches alphanumeric runs long enough to hold a VIN.
var vinShapedToken = regexp.MustCompile(`[A-Za-z0-9]{17,}`)

// Scrub removes every occurrence of the given secrets (case-insensitive) and any
// VIN-shaped token from text. Secrets shorter than three characters are
// ignored so that scrubbing cannot erase ordinary words.
func Scrub(text string, secrets ...string) string {
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) < 3 {
			continue
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(s))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, redacted)
	}
	return vinShapedToken.ReplaceAllStringFunc(text, func(tok string) string {
		if hasLetterAndDigit(tok) {
			return redacted
		}
		return tok
	})
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}

// SafeError is the scrubbed form of an unexpected failure.
type SafeError struct {
	message string
	stack   string
}

// Sanitize is the mandatory boundary between a raw failure and anything
// observable: the message and stack are scrubbed of secrets and VIN-shaped
// tokens, and the stack is truncated to MaxStackLength.
func Sanitize(err error, stack []byte, secrets ...string) SafeError {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	msg = Scrub(msg, secrets...)
	st := Scrub(string(stack), secrets...)
	if len(st) > MaxStackLength {
		st = st[:MaxStackLength]
	}
	return SafeError{message: msg, stack: st}
}

func (e SafeError) Message() string { return e.message }
func (e SafeError) Stack() string   { return e.stack }
func (e SafeError) IsZero() bool    { return e.message == "" && e.stack == "" }

// Error lets a SafeError travel as an error value.
func (e SafeError) Error() string { return e.message }

// Err returns e as an error, or nil when e is zero.
func (e SafeError) Err() error {
	if e.IsZero() {
		return nil
	}
	return errors.New(e.message)
}

// MarshalJSON encodes the scrubbed message and stack.
func (e SafeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message string `json:"message"`
		Stack   string `json:"stack,omitempty"`
	}{e.message, e.stack})
}
