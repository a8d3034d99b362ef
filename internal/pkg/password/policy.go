package password

import "github.com/edutech-foundation/site-api/internal/domain"

const MinLength = 8

// Validate enforces the account password policy: at least MinLength
// characters with one uppercase letter, one digit and one symbol.
// It returns domain.ErrWeakPassword on any violation.
func Validate(pw string) error {
	if len([]rune(pw)) < MinLength {
		return domain.ErrWeakPassword
	}
	var hasUpper, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case !isASCIIAlnum(r):
			hasSymbol = true
		}
	}
	if !hasUpper || !hasDigit || !hasSymbol {
		return domain.ErrWeakPassword
	}
	return nil
}

// Any character outside [A-Za-z0-9] counts as a symbol, whitespace included.
func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
