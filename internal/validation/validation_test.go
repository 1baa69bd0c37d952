package validation

import "testing"

func TestEmail(t *testing.T) {
	valid := []string{
		"a@b.com",
		"  user@example.org  ",
		"first.last@sub.domain.io",
	}
	for _, s := range valid {
		if !Email(s) {
			t.Errorf("Email(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"   ",
		"plainaddress",
		"no@dot",
		"two@@example.com",
		"spaces in@example.com",
	}
	for _, s := range invalid {
		if Email(s) {
			t.Errorf("Email(%q) = true, want false", s)
		}
	}
}

func TestPassword(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		r := Password("")
		if r.Valid || r.Strength != "empty" || r.Score != 0 {
			t.Fatalf("got %+v, want invalid empty result with score 0", r)
		}
		if r.Message != "Password is required" {
			t.Fatalf("message = %q", r.Message)
		}
	})

	tests := []struct {
		name     string
		input    string
		score    int
		strength string
		valid    bool
	}{
		{"AllFiveChecks", "Abcdef1!", 5, "strong", true},
		{"NoSpecial", "Abcdefg1", 4, "strong", true},
		{"LongLowerDigit", "abcdefg1", 3, "medium", true},
		{"ShortMixed", "Ab1!", 4, "strong", false},
		{"LowerOnlyLong", "abcdefgh", 2, "medium", false},
		{"DigitsOnlyShort", "1234", 1, "weak", false},
		{"LowerOnlyShort", "abc", 1, "weak", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Password(tc.input)
			if r.Score != tc.score {
				t.Errorf("score = %d, want %d", r.Score, tc.score)
			}
			if r.Strength != tc.strength {
				t.Errorf("strength = %q, want %q", r.Strength, tc.strength)
			}
			if r.Valid != tc.valid {
				t.Errorf("valid = %v, want %v", r.Valid, tc.valid)
			}
		})
	}

	t.Run("ValidImpliesLengthAndScore", func(t *testing.T) {
		// isValid must equal (length check && score >= 3) for any input.
		for _, p := range []string{"Abcdef1!", "short1!", "nouppercase1!", "NOLOWERCASE1!", "abcdefgh"} {
			r := Password(p)
			want := r.Checks.Length && r.Score >= 3
			if r.Valid != want {
				t.Errorf("Password(%q).Valid = %v, want %v", p, r.Valid, want)
			}
		}
	})
}

func TestUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		valid   bool
		message string
	}{
		{"Valid", "bob_42", true, "Username is valid"},
		{"Trimmed", "  alice  ", true, "Username is valid"},
		{"Empty", "", false, "Username is required"},
		{"Blank", "   ", false, "Username is required"},
		{"TooShort", "ab", false, "Username must be at least 3 characters long"},
		{"TooLong", "abcdefghijklmnopqrstu", false, "Username must be less than 20 characters"},
		{"BadChars", "bob!", false, "Username can only contain letters, numbers, and underscores"},
		{"StartsWithDigit", "1bob", false, "Username cannot start with a number"},
		// Charset rule is checked before the leading-digit rule.
		{"DigitAndBadChars", "1bob!", false, "Username can only contain letters, numbers, and underscores"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Username(tc.input)
			if r.Valid != tc.valid {
				t.Errorf("valid = %v, want %v", r.Valid, tc.valid)
			}
			if r.Message != tc.message {
				t.Errorf("message = %q, want %q", r.Message, tc.message)
			}
		})
	}
}

func TestOTP(t *testing.T) {
	if !OTP("123456", 0) {
		t.Error("default length should accept 6 digits")
	}
	if !OTP(" 123 456 ", 6) {
		t.Error("whitespace should be stripped before matching")
	}
	if !OTP("1234", 4) {
		t.Error("explicit length 4 should accept 4 digits")
	}
	if OTP("12345", 6) {
		t.Error("wrong length should fail")
	}
	if OTP("12a456", 6) {
		t.Error("non-digits should fail")
	}
	if OTP("", 6) {
		t.Error("empty input should fail")
	}
}

func TestPhone(t *testing.T) {
	valid := []string{
		"+1 (555) 123-4567",
		"15551234567",
		"+442071234567",
	}
	for _, s := range valid {
		if !Phone(s) {
			t.Errorf("Phone(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"12345",         // too short
		"+0 555 123456", // leading zero
		"555-abc-1234",  // letters survive cleaning
	}
	for _, s := range invalid {
		if Phone(s) {
			t.Errorf("Phone(%q) = true, want false", s)
		}
	}
}

func TestPasswordsMatch(t *testing.T) {
	if !PasswordsMatch("secret", "secret") {
		t.Error("identical passwords should match")
	}
	if PasswordsMatch("secret", "Secret") {
		t.Error("comparison must be exact")
	}
}
