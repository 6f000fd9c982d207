// Package keywords selects, validates and edits pitch keyword lists.
package keywords

import (
	"strings"
	"unicode"
)

// Clean trims a keyword and collapses inner whitespace runs to one space.
func Clean(keyword string) string {
	return strings.Join(strings.Fields(keyword), " ")
}

// Key returns the comparison key used for duplicate and flag lookups.
func Key(keyword string) string {
	return strings.ToLower(Clean(keyword))
}

// IsBlank reports whether the keyword has no letters or digits.
func IsBlank(keyword string) bool {
	for _, r := range keyword {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
