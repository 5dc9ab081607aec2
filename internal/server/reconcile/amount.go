package reconcile

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// groupedInt is an integer part with exactly-three-digit groups, the
// separator already normalised to a space.
var groupedInt = regexp.MustCompile(`^\d{1,3}( \d{3})+$`)

// parseAmount converts a captured numeric literal such as "1250.50." or
// "99,90," into a decimal. One trailing non-digit character (the sentence or
// unit delimiter that the capture swallows) is dropped.
//
// A single separator of either kind is the decimal point. With both kinds
// present the last one is the decimal point and the other must group
// thousands, so "1.234,56" and "1,234.56" agree. Anything else is rejected
// rather than guessed.
func parseAmount(lit string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(lit)
	if n := len(s); n > 0 && (s[n-1] < '0' || s[n-1] > '9') {
		s = s[:n-1]
	}
	if s == "" {
		return decimal.Zero, false
	}

	last := strings.LastIndexAny(s, ".,")
	if last >= 0 {
		intPart, frac := s[:last], s[last+1:]
		if strings.ContainsAny(intPart, ".,") {
			group := ","
			if s[last] == ',' {
				group = "."
			}
			if strings.ContainsRune(intPart, rune(s[last])) ||
				!groupedInt.MatchString(strings.ReplaceAll(intPart, group, " ")) {
				return decimal.Zero, false
			}
			intPart = strings.ReplaceAll(intPart, group, "")
		}
		s = intPart + "." + frac
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
