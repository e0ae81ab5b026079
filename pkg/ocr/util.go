package ocr

import "strings"

// Snippet returns a shortened single-line version of s for logging.
func Snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
