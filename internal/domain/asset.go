// Package domain defines core data structures shared by the exchange simulator.
package domain

import "strings"

// DefaultQuoteCurrency is the currency balances and prices are expressed in.
const DefaultQuoteCurrency = "USD"

// NormalizeAsset trims and upper-cases an asset symbol.
// A trailing "/<quote>" pair suffix is removed, so "btc/usd" and "BTC" name the same asset.
func NormalizeAsset(symbol, quote string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if quote == "" {
		return s
	}
	return strings.TrimSuffix(s, "/"+strings.ToUpper(quote))
}

// PairSymbol joins an asset with its quote currency the way push feeds name pairs ("BTC/USD").
func PairSymbol(asset, quote string) string {
	return strings.ToUpper(asset) + "/" + strings.ToUpper(quote)
}
