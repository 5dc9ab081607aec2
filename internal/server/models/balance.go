package models

import "github.com/shopspring/decimal"

// CurrencyBalance is one reconciled balance. It is computed per request and
// never persisted.
type CurrencyBalance struct {
	Provider string
	Currency string
	Value    decimal.Decimal
}
