package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FirstNonEmpty returns the first non-empty string, or "" when all are empty
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}

// SplitByMultipleDelimiters splits s on any of the delimiters, trimming spaces and dropping empty parts
func SplitByMultipleDelimiters(s string, delimiters ...string) []string {
	var parts []string
	if len(delimiters) == 0 {
		parts = []string{s}
	} else {
		delimiterPattern := "[" + regexp.QuoteMeta(strings.Join(delimiters, "")) + "]"
		parts = regexp.MustCompile(delimiterPattern).Split(s, -1)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Truncate cuts s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
