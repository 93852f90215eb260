// Package utils provides shared utilities for text and logging.
package utils

import "unicode/utf8"

// Ellipsis is appended to text shortened by TruncateRunes.
const Ellipsis = "…"

// TruncateRunes returns the first maxRunes characters of s followed by Ellipsis,
// or s unchanged when it is not longer than maxRunes. It never splits a multi-byte character.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}
