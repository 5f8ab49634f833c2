// Package validation provides input sanitization and field validation applied
// before any persistence call.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// htmlEscaper neutralises markup-significant characters so stored strings are
// safe to echo into any surface.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// SanitizeString trims whitespace, drops control characters and escapes
// markup-significant characters.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return htmlEscaper.Replace(s)
}

// SanitizeMap sanitizes every string value in a flat string map. Nil maps
// pass through.
func SanitizeMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[SanitizeString(k)] = SanitizeString(v)
	}
	return out
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Required fails with a validation error when the value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(fmt.Sprintf("%s is required", field))
	}
	return nil
}

// Email validates a normalized email address.
func Email(value string) error {
	if !emailPattern.MatchString(value) {
		return apperr.Validation("email is invalid")
	}
	return nil
}

// Password enforces the minimum credential length.
func Password(value string) error {
	if len(value) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	if len(value) > 72 {
		// bcrypt truncates beyond 72 bytes
		return apperr.Validation("password must be at most 72 characters")
	}
	return nil
}

// MaxLen fails when the value exceeds the limit.
func MaxLen(field, value string, limit int) error {
	if len(value) > limit {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

// Score validates a 0-10 analysis input.
func Score(field string, value float64) error {
	if value < 0 || value > 10 {
		return apperr.Validation(fmt.Sprintf("%s must be between 0 and 10", field))
	}
	return nil
}
