package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in store key segments so a
// user-controlled identifier containing ':' cannot address another key.
//
// Example: an identifier "user:admin" becomes "user_admin".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// QuotaKey is the store key for a user's daily quota record within a tenant.
func QuotaKey(prefix string, subject Subject) string {
	return prefix + "quota:" + SanitizeKeySegment(subject.TenantID.String()) + ":" + SanitizeKeySegment(subject.UserID.String())
}
