package warden

import "strings"

// Normalize canonicalizes a raw guess before any comparison: leading
// and trailing whitespace is trimmed and the text is lowercased, so
// "Debuggle", " debuggle " and "DEBUGGLE" all evaluate the same way.
// Idempotent.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
