package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "plain", input: "0.1"},
		{name: "max places", input: "0.000000000000000001"},
		{name: "max integer digits", input: "99999999999999999999"},
		{name: "zero", input: "0", message: "Amount must be greater than 0"},
		{name: "negative", input: "-1", message: "Amount must be greater than 0"},
		{name: "tiny exponent", input: "1e-2147483647", message: "Amount must have at most 18 decimal places"},
		{name: "too many places", input: "0.0000000000000000001", message: "Amount must have at most 18 decimal places"},
		{name: "huge exponent", input: "1e400", message: "Amount is too large"},
		{name: "too many digits", input: "100000000000000000000", message: "Amount is too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuantity(decimal.RequireFromString(tt.input))
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, KindInvalidQuantity, KindOf(err))
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestInBounds(t *testing.T) {
	assert.True(t, InBounds(decimal.RequireFromString("50000.5")))
	assert.True(t, InBounds(decimal.Zero))
	assert.False(t, InBounds(decimal.RequireFromString("1e-2147483647")))
	assert.False(t, InBounds(decimal.RequireFromString("1e400")))
}

func TestTotalInBounds(t *testing.T) {
	q := decimal.RequireFromString("0.000000000000000001")
	p := decimal.RequireFromString("99999999999999999999.999999999999999999")
	assert.True(t, TotalInBounds(q.Mul(p)))
	assert.True(t, TotalInBounds(p.Mul(p)))
	assert.False(t, TotalInBounds(decimal.RequireFromString("1e-37")))
	assert.False(t, TotalInBounds(decimal.RequireFromString("1e40")))
}
