package domain

import "github.com/shopspring/decimal"

// Delta is a requested change to the ledger produced by one order.
type Delta struct {
	Type  TradeType
	Asset string
	// UnitPrice price the order was executed at.
	UnitPrice decimal.Decimal
	// BalanceChange signed cash change, negative for buys.
	BalanceChange decimal.Decimal
	// QuantityChange signed holding change, negative for sells.
	QuantityChange decimal.Decimal
}

// NewTradeDelta builds the delta for buying or selling quantity of asset at price.
func NewTradeDelta(kind TradeType, asset string, quantity, price decimal.Decimal) Delta {
	total := quantity.Mul(price)
	d := Delta{Type: kind, Asset: asset, UnitPrice: price}
	if kind == TradeTypeBuy {
		d.BalanceChange = total.Neg()
		d.QuantityChange = quantity
	} else {
		d.BalanceChange = total
		d.QuantityChange = quantity.Neg()
	}
	return d
}
