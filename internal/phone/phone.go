// Package phone canonicalizes customer phone numbers. The canonical form is
// the single key every component uses to match customers across terminals, so
// this logic must not be duplicated or approximated anywhere else.
package phone

import "strings"

const (
	nationalLength = 10
	countryCode    = "1"
	trunkPrefix    = "0"
)

// Normalize reduces a raw phone string to its canonical comparable form. It
// is total: malformed input degrades to a best-effort shorter string rather
// than failing, because phone numbers entered at the register are the only
// natural key a walk-in customer has.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) > nationalLength && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	if len(digits) > nationalLength && strings.HasPrefix(digits, trunkPrefix) {
		digits = digits[len(trunkPrefix):]
	}
	if len(digits) > nationalLength {
		digits = digits[len(digits)-nationalLength:]
	}

	return digits
}
