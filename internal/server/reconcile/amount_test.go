package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "100.00", want: "100", ok: true},
		{in: "100.00.", want: "100", ok: true},
		{in: "250,", want: "250", ok: true},
		{in: "15,50.", want: "15.5", ok: true},
		{in: "1,234.56", want: "1234.56", ok: true},
		{in: "1,234.56.", want: "1234.56", ok: true},
		{in: "1.234,56.", want: "1234.56", ok: true},
		{in: "12.345.678,9", want: "12345678.9", ok: true},
		{in: "1,250.", want: "1.25", ok: true},
		{in: "7", want: "7", ok: true},
		{in: "", ok: false},
		{in: ".", ok: false},
		{in: ",", ok: false},
		{in: "1.2.3", ok: false},
		{in: "1,2,3", ok: false},
		{in: "1.2,3", ok: false},
		{in: "1,2345.6", ok: false},
		{in: "1.234.5,6", ok: false},
		{in: "1,234,56", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
			}
		})
	}
}
