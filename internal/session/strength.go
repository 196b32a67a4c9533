package session

import (
	"unicode"

	"github.com/dmitrijs2005/agentvault/internal/common"
)

const minPasswordLength = 8

// ValidateStrength checks a master password candidate against the strength
// rules: minimum length plus upper, lower, digit, and symbol classes.
// The returned WeakPasswordError names every unmet rule.
func ValidateStrength(password []byte) error {
	var unmet []string

	if len(password) < minPasswordLength {
		unmet = append(unmet, "at least 8 characters")
	}

	var upper, lower, digit, symbol bool
	for _, r := range string(password) {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	if !upper {
		unmet = append(unmet, "an uppercase letter")
	}
	if !lower {
		unmet = append(unmet, "a lowercase letter")
	}
	if !digit {
		unmet = append(unmet, "a digit")
	}
	if !symbol {
		unmet = append(unmet, "a symbol")
	}

	if len(unmet) > 0 {
		return &common.WeakPasswordError{Unmet: unmet}
	}
	return nil
}
