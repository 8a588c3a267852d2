package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// SnilsCheckResult is the outcome of a SNILS number check
type SnilsCheckResult struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// NormalizeSnils strips separators and returns the 11 digits of a SNILS number,
// or "" if the input does not contain exactly 11 digits.
func NormalizeSnils(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return ""
		}
	}
	if b.Len() != 11 {
		return ""
	}
	return b.String()
}

// CheckSnils validates a SNILS insurance number against the Pension Fund checksum.
// Format: XXX-XXX-XXX YY, where YY is the control number.
// Numbers up to 001-001-998 predate the checksum and are accepted as-is.
func CheckSnils(s string) *SnilsCheckResult {
	digits := NormalizeSnils(s)
	if digits == "" {
		return &SnilsCheckResult{
			Valid:   false,
			Message: "SNILS must contain exactly 11 digits",
		}
	}

	formatted := fmt.Sprintf("%s-%s-%s %s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])

	if digits[:9] <= "001001998" {
		return &SnilsCheckResult{Valid: true, Formatted: formatted}
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(digits[i]-'0') * (9 - i)
	}

	var control int
	switch {
	case sum < 100:
		control = sum
	case sum == 100 || sum == 101:
		control = 0
	default:
		control = sum % 101
		if control == 100 {
			control = 0
		}
	}

	if fmt.Sprintf("%02d", control) != digits[9:] {
		return &SnilsCheckResult{
			Valid:   false,
			Message: "Invalid SNILS checksum",
		}
	}

	return &SnilsCheckResult{Valid: true, Formatted: formatted}
}
