// Package normalize canonicalizes the loosely formatted identifiers that
// arrive from spreadsheets and forms: tax IDs, template names and dates.
package normalize

import (
	"strconv"
	"strings"
)

// TaxID canonicalizes a Chilean RUT to "BODY-DV": punctuation and
// whitespace are dropped, leading zeros trimmed and the check digit
// upper-cased. Inputs without a dash treat the last character as the
// check digit. An input with no digits yields "".
func TaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	s := b.String()
	if len(s) < 2 {
		return ""
	}
	body := strings.TrimLeft(s[:len(s)-1], "0")
	dv := s[len(s)-1:]
	if body == "" || strings.ContainsRune(body, 'K') {
		return ""
	}
	return body + "-" + dv
}

// ValidTaxID verifies the modulo-11 check digit of a normalized RUT.
func ValidTaxID(normalized string) bool {
	body, dv, ok := strings.Cut(normalized, "-")
	if !ok || body == "" || len(dv) != 1 {
		return false
	}
	if _, err := strconv.ParseUint(body, 10, 64); err != nil {
		return false
	}
	return checkDigit(body) == dv
}

func checkDigit(body string) string {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(r)
	}
}
