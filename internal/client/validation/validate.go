// Package validation contains the pure syntax checks used by the onboarding
// flow. The functions perform no I/O and are safe for concurrent use.
package validation

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// IsValidEmail reports whether email looks like local@domain.tld. Leading and
// trailing whitespace is trimmed before the check; the domain is matched
// case-insensitively by virtue of the character classes.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// IsValidUsername reports whether username is 3 to 99 characters drawn from
// [A-Za-z0-9_]. Length and character class are checked independently so an
// empty string can never slip through the pattern.
func IsValidUsername(username string) bool {
	if len(username) < 3 || len(username) >= 100 {
		return false
	}
	return usernameRegex.MatchString(username)
}
