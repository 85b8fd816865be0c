package payroll

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FormatNumber normalizes a numeric cell for display.
//
// Thousands separators and surrounding space are dropped. Integral values
// print without a fractional part and anything else with two decimals.
// Text that does not parse as a finite number is returned unchanged.
func FormatNumber(v string) string {
	clean := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
	n, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return v
	}
	if n == math.Trunc(n) {
		if n == 0 {
			return "0"
		}
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', 2, 64)
}

// lastRunes returns the final n runes of s, or s itself when shorter.
func lastRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}

const monthLayout = "2006-01"

// ValidateMonth checks that month is written as YYYY-MM.
func ValidateMonth(month string) error {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return ErrInvalidMonth
	}
	return nil
}

// isBlankName reports whether a sheet name cell means "no employee".
// Sheets exported through pandas carry "nan" in empty cells.
func isBlankName(name string) bool {
	return name == "" || name == "nan"
}
