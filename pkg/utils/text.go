// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// CollapseWhitespace replaces runs of whitespace with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
