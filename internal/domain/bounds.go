package domain

import "github.com/shopspring/decimal"

// Bounds on quantities and prices accepted from clients and price sources.
// Checks only read the exponent and coefficient length, so they stay cheap for hostile inputs
// such as 1e-2147483647 whose arithmetic would not terminate in practice.
const (
	MaxDecimalPlaces = 18
	MaxIntegerDigits = 20
)

// InBounds reports whether d has at most MaxDecimalPlaces fractional digits and at most
// MaxIntegerDigits integer digits.
func InBounds(d decimal.Decimal) bool {
	return within(d, MaxDecimalPlaces, MaxIntegerDigits)
}

// TotalInBounds reports whether d fits the range of a quantity multiplied by a price.
func TotalInBounds(d decimal.Decimal) bool {
	return within(d, 2*MaxDecimalPlaces, 2*MaxIntegerDigits)
}

func within(d decimal.Decimal, places, digits int) bool {
	if int(d.Exponent()) < -places {
		return false
	}
	return d.NumDigits()+int(d.Exponent()) <= digits
}

// ValidateQuantity checks an order quantity before any arithmetic is done with it.
func ValidateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return NewError(KindInvalidQuantity, "Amount must be greater than 0")
	}
	if q.Exponent() < -MaxDecimalPlaces {
		return NewError(KindInvalidQuantity, "Amount must have at most %d decimal places", MaxDecimalPlaces)
	}
	if !InBounds(q) {
		return NewError(KindInvalidQuantity, "Amount is too large")
	}
	return nil
}
