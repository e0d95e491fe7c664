// Package attrs reads values back out of slog-style key/value attribute lists.
package attrs

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Values implementing fmt.Stringer are rendered through String.
// Returns empty string if the key is not found.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			return v
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// FirstString returns the first non-empty value among keys.
func FirstString(attrs []any, keys ...string) string {
	for _, key := range keys {
		if v := ExtractString(attrs, key); v != "" {
			return v
		}
	}
	return ""
}
