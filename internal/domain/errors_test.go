package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := NewError(KindInsufficientFunds, "Insufficient funds. Your balance is $%s", "40")
	wrapped := errors.Wrap(err, "execute buy")

	assert.True(t, errors.Is(wrapped, ErrInsufficientFunds))
	assert.False(t, errors.Is(wrapped, ErrInsufficientHoldings))
	assert.Equal(t, KindInsufficientFunds, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "Insufficient funds. Your balance is $40", err.Error())
}

func TestNormalizeAsset(t *testing.T) {
	tests := []struct {
		in, quote, want string
	}{
		{"btc", "USD", "BTC"},
		{" BTC/USD ", "USD", "BTC"},
		{"eth/usd", "usd", "ETH"},
		{"ETH/EUR", "USD", "ETH/EUR"},
		{"sol", "", "SOL"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAsset(tt.in, tt.quote))
		})
	}
}
