package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a Binance REST client. Public market endpoints work with empty credentials.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	return client
}
