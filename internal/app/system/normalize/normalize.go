// Package normalize canonicalizes user-supplied identity fields so that
// lookups and uniqueness checks compare like with like.
package normalize

import (
	"regexp"
	"strings"

	"github.com/dalemusser/gympro/internal/app/system/htmlsanitize"
	"github.com/dalemusser/gympro/internal/domain/models"
)

// EmailPattern is the stored email shape: one @, no whitespace or capitals,
// and a dot in the domain. The users collection validator enforces the same
// pattern.
const EmailPattern = `^[^@\sA-Z]+@[^@\sA-Z]+\.[^@\sA-Z]+$`

var emailRE = regexp.MustCompile(EmailPattern)

// Email trims surrounding whitespace and lowercases.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether an already normalized email has the stored shape.
func ValidEmail(s string) bool {
	return emailRE.MatchString(s)
}

// Name trims whitespace and strips any markup. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(htmlsanitize.PlainText(strings.TrimSpace(s)))
}

// Role lowercases and trims.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MembershipType maps any casing of a known tier to its canonical form.
// Unknown values are returned trimmed so validation can reject them.
func MembershipType(s string) string {
	s = strings.TrimSpace(s)
	for _, v := range []string{models.MembershipBasic, models.MembershipPremium, models.MembershipVIP} {
		if strings.EqualFold(s, v) {
			return v
		}
	}
	return s
}

// Status maps any casing of a known status to its canonical form.
func Status(s string) string {
	s = strings.TrimSpace(s)
	for _, v := range []string{models.StatusActive, models.StatusInactive, models.StatusSuspended} {
		if strings.EqualFold(s, v) {
			return v
		}
	}
	return s
}
