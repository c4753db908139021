package credentials

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Normalize identifier for lookup: emails are trimmed and lower cased, phones keep digits only.
// Returns apperrors.ErrValidation if identifier can't be an identifier of the method.
func Normalize(identifier string, method models.LoginMethod) (string, error) {
	switch method {
	case models.LoginMethodEmail:
		return normalizeEmail(identifier)
	case models.LoginMethodPhone:
		return normalizePhone(identifier)
	default:
		return "", fmt.Errorf("%w: unknown login method %q", apperrors.ErrValidation, method)
	}
}

func normalizeEmail(identifier string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsFunc(email, unicode.IsSpace) {
		return "", fmt.Errorf("%w: malformed email", apperrors.ErrValidation)
	}

	return email, nil
}

func normalizePhone(identifier string) (string, error) {
	var b strings.Builder
	for _, r := range identifier {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || unicode.IsSpace(r):
		default:
			return "", fmt.Errorf("%w: malformed phone", apperrors.ErrValidation)
		}
	}

	phone := b.String()
	if len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits {
		return "", fmt.Errorf("%w: phone must have %d to %d digits", apperrors.ErrValidation, minPhoneDigits, maxPhoneDigits)
	}

	return phone, nil
}

// RedactIdentifier hides most of identifier for logs: "al***@example.com", "***4567"
func RedactIdentifier(identifier string) string {
	if at := strings.LastIndex(identifier, "@"); at >= 0 {
		local := []rune(identifier[:at])
		if len(local) > 2 {
			local = local[:2]
		}
		return string(local) + "***" + identifier[at:]
	}

	runes := []rune(identifier)
	if len(runes) <= 4 {
		return "***"
	}
	return "***" + string(runes[len(runes)-4:])
}
