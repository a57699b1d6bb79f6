package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// minPasswordLength applies to every account, including ones seeded
// through the CLI.
const minPasswordLength = 12

const passwordSpecials = "!@#$%^&*()-_=+[]{}|;:',.<>?/`~\"\\"

// PasswordValidationError collects everything wrong with a candidate
// password so a caller can surface the full list at once.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidatePassword checks a candidate password against the account
// policy: at least minPasswordLength characters containing an uppercase
// letter, a lowercase letter, a digit and a special character. Letters
// outside ASCII count toward their unicode class.
func ValidatePassword(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	var messages []string
	if len(password) < minPasswordLength {
		messages = append(messages, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !upper {
		messages = append(messages, "password must contain an uppercase letter")
	}
	if !lower {
		messages = append(messages, "password must contain a lowercase letter")
	}
	if !digit {
		messages = append(messages, "password must contain a digit")
	}
	if !special {
		messages = append(messages, "password must contain a special character")
	}
	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}
	return nil
}

// ValidatePasswordOrError reduces the policy check to a single message,
// the form the API handlers return to clients.
func ValidatePasswordOrError(password string) error {
	err := ValidatePassword(password)
	if err == nil {
		return nil
	}
	var validErr *PasswordValidationError
	if errors.As(err, &validErr) {
		return errors.New(validErr.Messages[0])
	}
	return err
}
