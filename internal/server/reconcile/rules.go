package reconcile

import (
	"errors"
	"regexp"
	"strings"
)

// CurrencyPlaceholder is replaced by the currency code in BaselineMarker.
const CurrencyPlaceholder = "{currency}"

// Rules describe how notification texts are recognised.
type Rules struct {
	// BaselineMarker identifies an available-balance declaration for one
	// currency, e.g. "валюта {currency}, доступні кошти".
	BaselineMarker string
	// BaselineAmount captures the declared amount in group 1.
	BaselineAmount *regexp.Regexp

	// MovementMarker identifies a funds movement; the message must also
	// contain the currency code.
	MovementMarker string
	// Operation captures the operation tag in group 1.
	Operation *regexp.Regexp
	CreditTag string
	DebitTag  string
	// MovementAmount captures the moved amount in group 1.
	MovementAmount *regexp.Regexp
}

// DefaultRules match the notification format of the bank's mail service.
func DefaultRules() Rules {
	return Rules{
		BaselineMarker: "валюта " + CurrencyPlaceholder + ", доступні кошти",
		BaselineAmount: regexp.MustCompile(`кошти\s+([\d.,]+)`),
		MovementMarker: "рух коштів",
		Operation:      regexp.MustCompile(`тип операції:? (зараховано|списано)`),
		CreditTag:      "зараховано",
		DebitTag:       "списано",
		MovementAmount: regexp.MustCompile(`сумма:\s+([\d.,]+)`),
	}
}

func (r Rules) validate() error {
	if !strings.Contains(r.BaselineMarker, CurrencyPlaceholder) {
		return errors.New("baseline marker must contain " + CurrencyPlaceholder)
	}
	if r.MovementMarker == "" || r.CreditTag == "" || r.DebitTag == "" {
		return errors.New("movement marker and operation tags are required")
	}
	for _, re := range []*regexp.Regexp{r.BaselineAmount, r.Operation, r.MovementAmount} {
		if re == nil || re.NumSubexp() < 1 {
			return errors.New("amount and operation patterns need a capture group")
		}
	}
	return nil
}

func (r Rules) baselineMarker(currency string) string {
	return strings.ReplaceAll(r.BaselineMarker, CurrencyPlaceholder, currency)
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
