package reconcile

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func englishRules() Rules {
	return Rules{
		BaselineMarker: "balance {currency} available funds",
		BaselineAmount: regexp.MustCompile(`funds\s+([\d.,]+)`),
		MovementMarker: "movement",
		Operation:      regexp.MustCompile(`(credited|debited)`),
		CreditTag:      "credited",
		DebitTag:       "debited",
		MovementAmount: regexp.MustCompile(`(?:credited|debited)\s+([\d.,]+)`),
	}
}

func newEngine(t *testing.T, rules Rules, currencies ...string) *Engine {
	t.Helper()
	e, err := NewEngine(rules, currencies)
	require.NoError(t, err)
	return e
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestReconcile_BaselinePlusNewerMovements(t *testing.T) {
	e := newEngine(t, englishRules(), "USD")

	got := e.Reconcile([]string{
		"movement USD credited 50.00",
		"movement USD debited 20.00",
		"balance USD available funds 100.00",
	})

	assertDecimal(t, "130.00", got["USD"])
}

func TestReconcile_OlderMovementsIgnored(t *testing.T) {
	e := newEngine(t, englishRules(), "USD")

	got := e.Reconcile([]string{
		"movement USD credited 5",
		"balance USD available funds 100.00",
		"movement USD credited 1000",
		"balance USD available funds 1.00",
	})

	assertDecimal(t, "105", got["USD"])
}

func TestReconcile_NoBaselineSumsEverything(t *testing.T) {
	e := newEngine(t, englishRules(), "UAH", "USD")

	got := e.Reconcile([]string{
		"movement UAH credited 10.50",
		"movement UAH debited 0.25",
		"movement UAH credited 4",
		"balance USD available funds 7",
	})

	assertDecimal(t, "14.25", got["UAH"])
	assertDecimal(t, "7", got["USD"])
}

func TestReconcile_UnparseableAmountContributesZero(t *testing.T) {
	e := newEngine(t, englishRules(), "USD")

	var got map[string]decimal.Decimal
	require.NotPanics(t, func() {
		got = e.Reconcile([]string{
			"movement USD credited 1.2.3",
			"movement USD debited .",
			"movement USD credited 10",
			"movement USD refunded 99",
			"balance USD available funds 100",
		})
	})

	assertDecimal(t, "110", got["USD"])
}

func TestReconcile_UnparseableBaselineFallsThrough(t *testing.T) {
	e := newEngine(t, englishRules(), "USD")

	got := e.Reconcile([]string{
		"movement USD credited 1",
		"balance USD available funds ,",
		"movement USD credited 2",
		"balance USD available funds 10",
	})

	assertDecimal(t, "13", got["USD"])
}

func TestReconcile_AllCurrenciesPresent(t *testing.T) {
	e := newEngine(t, englishRules(), "UAH", "USD", "EUR")

	got := e.Reconcile(nil)
	require.Len(t, got, 3)
	for _, cur := range []string{"UAH", "USD", "EUR"} {
		assert.True(t, got[cur].IsZero(), cur)
	}
}

func TestReconcile_MovementMustMentionCurrency(t *testing.T) {
	e := newEngine(t, englishRules(), "UAH", "USD")

	got := e.Reconcile([]string{
		"movement USD credited 3",
		"movement UAH debited 1",
	})

	assertDecimal(t, "3", got["USD"])
	assertDecimal(t, "-1", got["UAH"])
}

func TestReconcile_DefaultRules(t *testing.T) {
	e := newEngine(t, DefaultRules(), "UAH", "USD")

	messages := []string{
		"Subject: Рух коштів\nBody: рух коштів по рахунку, валюта UAH, тип операції: списано, сумма: 250.00.",
		"Subject: Рух коштів\nBody: рух коштів по рахунку, валюта USD, тип операції зараховано, сумма: 15,50.",
		"Subject: Залишок\nBody: валюта UAH, доступні кошти 1000.00.",
		"Subject: Рух коштів\nBody: рух коштів, валюта UAH, тип операції: зараховано, сумма: 999.00.",
		"Subject: Залишок\nBody: валюта USD, доступні кошти 200.10.",
	}

	got := e.Reconcile(messages)
	assertDecimal(t, "750", got["UAH"])
	assertDecimal(t, "215.60", got["USD"])
}

func TestReconcile_IsPure(t *testing.T) {
	e := newEngine(t, englishRules(), "USD")
	msgs := []string{"movement USD credited 1", "balance USD available funds 2"}

	a := e.Reconcile(msgs)
	b := e.Reconcile(msgs)
	assert.True(t, a["USD"].Equal(b["USD"]))
	assert.Equal(t, []string{"movement USD credited 1", "balance USD available funds 2"}, msgs)
}

func TestNewEngine_InvalidRules(t *testing.T) {
	r := englishRules()
	r.BaselineMarker = "balance available funds"
	_, err := NewEngine(r, []string{"USD"})
	assert.Error(t, err)

	r = englishRules()
	r.Operation = regexp.MustCompile(`credited|debited`)
	_, err = NewEngine(r, []string{"USD"})
	assert.Error(t, err)

	r = englishRules()
	r.MovementAmount = nil
	_, err = NewEngine(r, []string{"USD"})
	assert.Error(t, err)

	_, err = NewEngine(englishRules(), nil)
	assert.Error(t, err)
}

func TestCurrencies_ReturnsCopy(t *testing.T) {
	e := newEngine(t, englishRules(), "UAH", "USD")
	c := e.Currencies()
	c[0] = "XXX"
	assert.Equal(t, []string{"UAH", "USD"}, e.Currencies())
}
