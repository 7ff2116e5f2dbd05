// Package sanitize cleans user-supplied names before they become file
// names, library keys, or labels in rendered output.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the maximum allowed length for library and file names.
const MaxNameLength = 80

// MaxTextLength is the maximum allowed length for free-text labels such as
// city names.
const MaxTextLength = 200

var (
	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)

	// reWhitespace matches runs of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Name sanitizes a dataset or graph profile name, keeping only
// [a-zA-Z0-9-_.] and enforcing MaxNameLength. Repeated hyphens and
// underscores are collapsed and leading dots are dropped so a name can
// never address a hidden or parent path.
func Name(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if isNameRune(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	s := collapse(b.String())
	s = strings.TrimLeft(s, ".")

	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	return s
}

// FileName turns a city name into a file name stem. Whitespace becomes
// underscores and anything outside [a-zA-Z0-9-_] is dropped. An input
// with nothing usable yields "Unknown".
func FileName(city string) string {
	s := reWhitespace.ReplaceAllString(strings.TrimSpace(city), "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isNameRune(r) {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(collapse(b.String()), "_-")

	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	if s == "" {
		return "Unknown"
	}
	return s
}

// Text strips control characters from a free-text label, collapses
// whitespace runs to single spaces, and truncates to MaxTextLength.
func Text(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	s := strings.TrimSpace(reWhitespace.ReplaceAllString(b.String(), " "))

	if len(s) > MaxTextLength {
		s = truncateRunes(s, MaxTextLength)
	}
	return s
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_'
}

func collapse(s string) string {
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	return reRepeatedUnderscores.ReplaceAllString(s, "_")
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	end := 0
	for end < len(s) {
		_, size := utf8.DecodeRuneInString(s[end:])
		if end+size > n {
			break
		}
		end += size
	}
	return s[:end]
}
