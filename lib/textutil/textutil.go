package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var innerWhitespace = regexp.MustCompile(`\s+`)

// CleanCell collapses the whitespace soup Banner and ColdFusion pages put
// inside table cells into a single-spaced, trimmed string. Banner pads
// empty cells with non-breaking spaces, so those are treated as spaces.
func CleanCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	return innerWhitespace.ReplaceAllString(name, "")
}
