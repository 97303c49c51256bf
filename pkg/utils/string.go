package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen runes, appending "..." when it cuts.
// Multi-byte characters are never split.
func Truncate(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
