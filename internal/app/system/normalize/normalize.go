// Package normalize canonicalises user-entered identifiers before they are
// stored or compared.
package normalize

import (
	"strings"
	"unicode"
)

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims and collapses inner whitespace, preserving case.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and lowercases a role.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// StudentID uppercases and drops all whitespace, so "ab 123" and "AB123"
// are the same registration number.
func StudentID(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// QueryParam trims a search or filter value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
