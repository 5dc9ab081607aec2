// Package reconcile derives per-currency balances from bank notification
// texts.
//
// Messages are ordered newest first. For each currency the newest
// available-balance declaration is the baseline, and every movement newer
// than it is applied on top. A currency without a declaration starts from
// zero and takes every movement into account. Messages that match a pattern
// but carry an unparseable amount are skipped.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	rules      Rules
	currencies []string
}

// NewEngine returns an Engine reconciling the given currency codes.
func NewEngine(rules Rules, currencies []string) (*Engine, error) {
	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("reconcile rules: %w", err)
	}
	if len(currencies) == 0 {
		return nil, fmt.Errorf("reconcile: no currencies")
	}
	return &Engine{rules: rules, currencies: append([]string(nil), currencies...)}, nil
}

// Currencies returns the configured currency codes in order.
func (e *Engine) Currencies() []string {
	return append([]string(nil), e.currencies...)
}

// Reconcile returns a balance for every configured currency.
func (e *Engine) Reconcile(messages []string) map[string]decimal.Decimal {
	baseline, baselineIdx := e.scanBaselines(messages)

	out := make(map[string]decimal.Decimal, len(e.currencies))
	for _, cur := range e.currencies {
		end := len(messages)
		if idx, ok := baselineIdx[cur]; ok {
			end = idx
		}
		out[cur] = baseline[cur].Add(e.sumMovements(messages[:end], cur))
	}
	return out
}

func (e *Engine) scanBaselines(messages []string) (map[string]decimal.Decimal, map[string]int) {
	values := make(map[string]decimal.Decimal, len(e.currencies))
	indexes := make(map[string]int, len(e.currencies))

	for i, msg := range messages {
		for _, cur := range e.currencies {
			if _, found := indexes[cur]; found {
				continue
			}
			if v, ok := e.baselineAmount(msg, cur); ok {
				values[cur] = v
				indexes[cur] = i
			}
		}
		if len(indexes) == len(e.currencies) {
			break
		}
	}
	return values, indexes
}

func (e *Engine) baselineAmount(msg, cur string) (decimal.Decimal, bool) {
	if !strings.Contains(msg, e.rules.baselineMarker(cur)) {
		return decimal.Zero, false
	}
	lit, ok := firstGroup(e.rules.BaselineAmount, msg)
	if !ok {
		return decimal.Zero, false
	}
	return parseAmount(lit)
}

func (e *Engine) sumMovements(messages []string, cur string) decimal.Decimal {
	sum := decimal.Zero
	for _, msg := range messages {
		if d, ok := e.movement(msg, cur); ok {
			sum = sum.Add(d)
		}
	}
	return sum
}

// movement returns the signed delta of msg for cur.
func (e *Engine) movement(msg, cur string) (decimal.Decimal, bool) {
	if !strings.Contains(msg, e.rules.MovementMarker) || !strings.Contains(msg, cur) {
		return decimal.Zero, false
	}

	op, ok := firstGroup(e.rules.Operation, msg)
	if !ok {
		return decimal.Zero, false
	}
	lit, ok := firstGroup(e.rules.MovementAmount, msg)
	if !ok {
		return decimal.Zero, false
	}
	amount, ok := parseAmount(lit)
	if !ok {
		return decimal.Zero, false
	}

	switch op {
	case e.rules.CreditTag:
		return amount, true
	case e.rules.DebitTag:
		return amount.Neg(), true
	default:
		return decimal.Zero, false
	}
}
