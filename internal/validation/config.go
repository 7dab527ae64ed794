package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
)

// ValidatePort checks if the port is within the TCP range
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.ConfigInvalid("port", fmt.Sprintf("must be between 1 and 65535, got: %d", port))
	}
	return nil
}

// ValidateLanguage checks if the language is a supported locale
func ValidateLanguage(lang string) error {
	if _, ok := i18n.ParseLocale(lang); !ok {
		return errors.ConfigInvalid("lang", fmt.Sprintf("must be ja or en, got: %q", lang))
	}
	return nil
}

// ValidateDuration checks a duration setting; zero is accepted only when allowZero is set
func ValidateDuration(field string, d time.Duration, allowZero bool) error {
	if d < 0 {
		return errors.ConfigInvalid(field, "must not be negative")
	}
	if d == 0 && !allowZero {
		return errors.ConfigInvalid(field, "must be positive")
	}
	return nil
}

// ValidateRateLimit checks the per-minute request limit (0 disables it)
func ValidateRateLimit(limit int) error {
	if limit < 0 {
		return errors.ConfigInvalid("rate_limit", "must not be negative")
	}
	return nil
}

// ValidateAuth checks that basic auth credentials are either both set or both empty
func ValidateAuth(user, passwordHash string) error {
	if (user == "") != (passwordHash == "") {
		return errors.ConfigInvalid("auth", "auth_user and auth_password_hash must be set together")
	}
	if strings.TrimSpace(user) != user {
		return errors.ConfigInvalid("auth_user", "must not have leading or trailing spaces")
	}
	if passwordHash != "" && !strings.HasPrefix(passwordHash, "$2") {
		return errors.ConfigInvalid("auth_password_hash", "must be a bcrypt hash")
	}
	return nil
}
