package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phoneRegex    = regexp.MustCompile(`^\+?[1-9][0-9]{0,15}$`)
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// Result carries the outcome of a single-value validation. Score, Strength
// and Checks are only populated by Password.
type Result struct {
	Valid    bool
	Message  string
	Strength string
	Score    int
	Checks   *PasswordChecks
}

// PasswordChecks records which of the five independent password rules held.
type PasswordChecks struct {
	Length    bool
	Lowercase bool
	Uppercase bool
	Number    bool
	Special   bool
}

// Email reports whether s looks like an email address. Input is trimmed
// first; empty input is invalid.
func Email(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// Password scores s against five independent checks and buckets the score
// into a strength label. The password is acceptable when the length check
// holds and at least three checks in total do.
func Password(s string) Result {
	if s == "" {
		return Result{
			Valid:    false,
			Strength: "empty",
			Message:  "Password is required",
			Score:    0,
		}
	}

	checks := &PasswordChecks{
		Length:    len(s) >= 8,
		Lowercase: strings.IndexFunc(s, unicode.IsLower) >= 0,
		Uppercase: strings.IndexFunc(s, unicode.IsUpper) >= 0,
		Number:    strings.IndexFunc(s, unicode.IsDigit) >= 0,
		Special:   strings.ContainsAny(s, specialChars),
	}

	score := 0
	for _, ok := range []bool{checks.Length, checks.Lowercase, checks.Uppercase, checks.Number, checks.Special} {
		if ok {
			score++
		}
	}

	var strength, message string
	switch {
	case score < 2:
		strength, message = "weak", "Password is too weak"
	case score < 4:
		strength, message = "medium", "Password strength is medium"
	default:
		strength, message = "strong", "Password is strong"
	}

	return Result{
		Valid:    checks.Length && score >= 3,
		Strength: strength,
		Message:  message,
		Score:    score,
		Checks:   checks,
	}
}

// Username validates a username after trimming. Checks run in a fixed
// order and the first failing rule supplies the message.
func Username(s string) Result {
	trimmed := strings.TrimSpace(s)

	if trimmed == "" {
		return Result{Valid: false, Message: "Username is required"}
	}
	if len(trimmed) < 3 {
		return Result{Valid: false, Message: "Username must be at least 3 characters long"}
	}
	if len(trimmed) > 20 {
		return Result{Valid: false, Message: "Username must be less than 20 characters"}
	}
	if !usernameRegex.MatchString(trimmed) {
		return Result{Valid: false, Message: "Username can only contain letters, numbers, and underscores"}
	}
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		return Result{Valid: false, Message: "Username cannot start with a number"}
	}

	return Result{Valid: true, Message: "Username is valid"}
}

// OTP reports whether code is exactly length digits after stripping
// whitespace. A length of zero or less means the default of six.
func OTP(code string, length int) bool {
	if length <= 0 {
		length = 6
	}

	clean := stripWhitespace(code)
	if len(clean) != length {
		return false
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Phone validates a phone number after stripping spaces, hyphens and
// parentheses. The cleaned value must be at least ten characters.
func Phone(s string) bool {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '-', r == '(', r == ')':
			return -1
		}
		return r
	}, s)

	return phoneRegex.MatchString(clean) && len(clean) >= 10
}

// PasswordsMatch reports strict equality of the two inputs.
func PasswordsMatch(password, confirm string) bool {
	return password == confirm
}

// Required validates that value is non-empty after trimming.
func Required(value, fieldName string) Result {
	if fieldName == "" {
		fieldName = "Field"
	}
	if strings.TrimSpace(value) == "" {
		return Result{Valid: false, Message: fmt.Sprintf("%s is required", fieldName)}
	}
	return Result{Valid: true, Message: fmt.Sprintf("%s is valid", fieldName)}
}

// MinLength validates that value has at least min characters.
func MinLength(value string, min int, fieldName string) Result {
	if fieldName == "" {
		fieldName = "Field"
	}
	if len(value) < min {
		return Result{
			Valid:   false,
			Message: fmt.Sprintf("%s must be at least %d characters long", fieldName, min),
		}
	}
	return Result{Valid: true, Message: fmt.Sprintf("%s meets minimum length requirement", fieldName)}
}

// MaxLength validates that value has at most max characters.
func MaxLength(value string, max int, fieldName string) Result {
	if fieldName == "" {
		fieldName = "Field"
	}
	if len(value) > max {
		return Result{
			Valid:   false,
			Message: fmt.Sprintf("%s must be no more than %d characters long", fieldName, max),
		}
	}
	return Result{Valid: true, Message: fmt.Sprintf("%s meets maximum length requirement", fieldName)}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
