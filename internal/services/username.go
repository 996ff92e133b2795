package services

import (
	"regexp"
	"strings"

	"github.com/vytor/promptfix/internal/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// NormalizeUsername derives a username from raw input. An email-like value
// contributes its local part, and when allowedDomain is set the domain must
// match it.
func NormalizeUsername(raw, allowedDomain string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.NewValidationError("username", "username is required")
	}

	if at := strings.LastIndex(name, "@"); at >= 0 {
		local, domain := name[:at], name[at+1:]
		if local == "" || domain == "" {
			return "", errors.NewValidationError("username", "invalid email address")
		}
		if allowedDomain != "" && !strings.EqualFold(domain, strings.TrimPrefix(allowedDomain, "@")) {
			return "", errors.NewValidationError("username", "email domain is not allowed")
		}
		name = local
	}

	name = strings.ToLower(name)
	if !usernamePattern.MatchString(name) {
		return "", errors.NewValidationError("username", "use 1-64 letters, digits, '.', '_' or '-', starting with a letter or digit")
	}
	return name, nil
}
