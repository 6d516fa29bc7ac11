package catalog

import (
	"regexp"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// noise holds the runes dropped from every extracted string.
var noise = runes.Remove(runes.Predicate(func(r rune) bool {
	switch r {
	case '\r', '\t', '\n',
		'\u00a0', // no-break space
		'\u2003', // em space
		'\u200b', // zero-width space
		'\u00ad', // soft hyphen
		'₽':
		return true
	}
	return false
}))

// Runs of two or more whitespace characters are deleted, not collapsed.
var whitespaceRun = regexp.MustCompile(`[\s\p{Z}]{2,}`)

// NormalizeText cleans a single string pulled from markup.
func NormalizeText(s string) string {
	cleaned, _, err := transform.String(noise, s)
	if err != nil {
		cleaned = s
	}
	return whitespaceRun.ReplaceAllString(cleaned, "")
}

// Normalize cleans every element of raw independently. The result has the
// same length and order as raw; an empty input yields an empty slice.
func Normalize(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = NormalizeText(s)
	}
	return out
}
