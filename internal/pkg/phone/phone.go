// Package phone normalizes phone numbers for identity lookups.
package phone

import "strings"

// Normalize returns p in E.164 form using countryCode when no prefix is present.
// "98765 43210" -> "+919876543210" for countryCode "91".
func Normalize(p, countryCode string) string {
	digits := digitsOnly(p)
	if digits == "" {
		return ""
	}
	trimmed := strings.TrimSpace(p)
	switch {
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + strings.TrimLeft(digits, "0")
	case countryCode != "" && strings.HasPrefix(digits, countryCode) && len(digits) > 10:
		return "+" + digits
	default:
		return "+" + countryCode + digits
	}
}

// Variants returns the alternate stored forms of p other than p itself:
// with and without the "+<countryCode>" prefix, and the bare national number.
func Variants(p, countryCode string) []string {
	e164 := Normalize(p, countryCode)
	if e164 == "" {
		return nil
	}

	national := strings.TrimPrefix(e164, "+")
	if countryCode != "" && strings.HasPrefix(national, countryCode) {
		national = strings.TrimPrefix(national, countryCode)
	}

	candidates := []string{
		e164,
		strings.TrimPrefix(e164, "+"),
		national,
		"0" + national,
	}

	seen := map[string]bool{p: true}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
