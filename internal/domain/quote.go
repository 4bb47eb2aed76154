package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote latest known price of an asset.
type PriceQuote struct {
	// Asset normalized asset symbol.
	Asset string `json:"asset"`
	// Price price in the quote currency, never negative.
	Price decimal.Decimal `json:"price"`
	// ObservedAt time the price was observed upstream.
	ObservedAt time.Time `json:"ts"`
}
