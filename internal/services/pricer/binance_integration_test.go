//go:build integration

package pricer

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/cryptosim/internal/clients"
)

// TestBinanceSource_Fetch_Integration calls the real Binance API.
// To run this test, use: go test -tags=integration -v ./...
func TestBinanceSource_Fetch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
	src := NewBinanceSource(client, []string{"BTC", "ETH"}, "USDT")

	ticks, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	for _, tk := range ticks {
		require.True(t, tk.Price.GreaterThan(decimal.Zero), "Expected price > 0 for %s, got %s", tk.Asset, tk.Price.String())
		t.Logf("Current %s price: %s", tk.Asset, tk.Price.String())
	}
}
