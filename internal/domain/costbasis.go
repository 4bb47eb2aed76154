package domain

import "github.com/shopspring/decimal"

// CostBasis tracks a weighted-average cost position in one asset.
// Buys move the average; sells realize the difference to it and leave the average unchanged.
type CostBasis struct {
	Quantity decimal.Decimal
	AvgCost  decimal.Decimal
	Realized decimal.Decimal
}

// Apply folds one transaction into the cost basis.
func (c *CostBasis) Apply(tx Transaction) {
	switch tx.Type {
	case TradeTypeBuy:
		total := c.Quantity.Add(tx.Quantity)
		if total.IsPositive() {
			c.AvgCost = c.AvgCost.Mul(c.Quantity).Add(tx.Total).Div(total)
		}
		c.Quantity = total
	case TradeTypeSell:
		c.Realized = c.Realized.Add(tx.UnitPrice.Sub(c.AvgCost).Mul(tx.Quantity))
		c.Quantity = c.Quantity.Sub(tx.Quantity)
		if !c.Quantity.IsPositive() {
			c.Quantity = decimal.Zero
		}
	}
}

// Unrealized returns the paper gain of the remaining quantity at price.
func (c *CostBasis) Unrealized(price decimal.Decimal) decimal.Decimal {
	return price.Sub(c.AvgCost).Mul(c.Quantity)
}
