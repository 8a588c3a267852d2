package profile

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate parses a DD.MM.YYYY date. Any other shape, and calendar-invalid
// dates such as 31.02.2024, are reported as unparseable.
func ParseDate(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return time.Time{}, false
	}

	var nums [3]int
	for i, part := range parts {
		if part == "" || len(part) > 4 || !allDigits(part) {
			return time.Time{}, false
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t as DD.MM.YYYY
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
