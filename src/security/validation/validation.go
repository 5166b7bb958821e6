// Package validation collects request field errors into the per-field map the
// API returns with 422 responses, and sanitizes free-text input.
package validation

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Errors accumulates messages per field. A nil-safe zero value is usable.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Any() bool {
	return len(e) > 0
}

// Require adds an error when the value is blank and reports whether it was
// present.
func (e Errors) Require(field, value, message string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, message)
		return false
	}
	return true
}

// ValidEmail reports whether the address parses as a bare RFC 5322 address.
func ValidEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// SanitizeText strips HTML and unprintable characters from free-text input
// such as notes and category names.
func SanitizeText(s string) string {
	s = strictPolicy.Sanitize(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}
