package schema

import (
	"regexp"
	"strings"
)

var (
	nonIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	repeatedUnderscore = regexp.MustCompile(`_{2,}`)
)

// Canonicalize normalizes a table or column name for comparison and storage:
// surrounding whitespace is trimmed, every character outside [a-zA-Z0-9_]
// becomes an underscore, underscore runs collapse to one, and the result is
// lowercased. "Unit Price (USD)" becomes "unit_price_usd_".
func Canonicalize(name string) string {
	name = strings.TrimSpace(name)
	name = nonIdentifierChars.ReplaceAllString(name, "_")
	name = repeatedUnderscore.ReplaceAllString(name, "_")
	return strings.ToLower(name)
}

func CanonicalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = Canonicalize(name)
	}
	return out
}
