package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanUTF8 removes invalid UTF-8 sequences and NUL bytes, which PostgreSQL text columns
// reject. The boolean reports whether anything was removed.
func CleanUTF8(input string) (string, bool) {
	needsCleaning := strings.Contains(input, "\x00") || !utf8.ValidString(input)

	if !needsCleaning {
		return input, false
	}

	cleaned := strings.ToValidUTF8(input, "")
	cleaned = strings.ReplaceAll(cleaned, "\x00", "")

	return cleaned, true
}

// CleanText prepares a single line value such as a name: control characters are dropped
// and whitespace runs collapse to one space.
func CleanText(input string) string {
	cleaned, _ := CleanUTF8(input)

	var b strings.Builder
	b.Grow(len(cleaned))

	space := false
	for _, r := range cleaned {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsControl(r):
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}

	return b.String()
}

// CleanMultiline keeps line breaks, for descriptions.
func CleanMultiline(input string) string {
	cleaned, _ := CleanUTF8(input)

	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)

	return strings.TrimSpace(cleaned)
}
