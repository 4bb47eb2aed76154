package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType direction of an executed order.
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// Transaction is an immutable record of one executed order.
type Transaction struct {
	ID        uint64          `json:"id"`
	Asset     string          `json:"asset"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// Total equals Quantity * UnitPrice.
	Total     decimal.Decimal `json:"total"`
	Type      TradeType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// String returns a human-readable string representation.
func (t Transaction) String() string {
	return fmt.Sprintf("#%d %s %s %s @ %s", t.ID, t.Type, t.Quantity.String(), t.Asset, t.UnitPrice.String())
}

// Holding quantity of one asset held by the account.
type Holding struct {
	Asset    string          `json:"asset"`
	Quantity decimal.Decimal `json:"quantity"`
}
