// Package utils provides utility functions for the application.
package utils

import (
	"strconv"
	"strings"
)

// BrazilCountryCode is the E.164 country prefix stamped onto national numbers.
const BrazilCountryCode = "55"

// NormalizePhone converts a free-form phone value into canonical digits-only
// form with the Brazilian country code:
//   - strips every non-digit character
//   - strips a single leading trunk zero
//   - prefixes "55" when absent and the remaining national number fits (<= 11 digits)
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	digits = strings.TrimPrefix(digits, "0")

	if !strings.HasPrefix(digits, BrazilCountryCode) && len(digits) <= 11 {
		digits = BrazilCountryCode + digits
	}
	return digits
}

// IsValidBrazilianPhone reports whether a normalized number is a plausible
// Brazilian destination:
//   - 12 digits (landline) or 13 digits (mobile)
//   - starts with the 55 country code
//   - area code between 11 and 99
//   - mobiles (13 digits) carry the leading 9 after the area code
func IsValidBrazilianPhone(normalized string) bool {
	if len(normalized) < 12 || len(normalized) > 13 {
		return false
	}
	if !strings.HasPrefix(normalized, BrazilCountryCode) {
		return false
	}
	area, err := strconv.Atoi(normalized[2:4])
	if err != nil || area < 11 || area > 99 {
		return false
	}
	if len(normalized) == 13 && normalized[4] != '9' {
		return false
	}
	return true
}
