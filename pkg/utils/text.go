package utils

import (
	"strings"
	"unicode/utf8"
)

// SafeText collapses runs of whitespace and strips invalid UTF-8 so the
// result is safe to persist and to feed into prompts.
func SafeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Truncate shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
