// Package risk holds position sizing and the optional exit overlay used by
// the backtest simulator.
package risk

import "github.com/shopspring/decimal"

// Shares returns how many whole shares cash buys at price:
// floor(cash / price). It returns 0 for a non-positive price or cash.
func Shares(cash, price decimal.Decimal) int64 {
	if !price.IsPositive() || !cash.IsPositive() {
		return 0
	}

	n := cash.Div(price).Floor()
	// Div rounds to DivisionPrecision; never size past the cash on hand.
	for n.IsPositive() && n.Mul(price).GreaterThan(cash) {
		n = n.Sub(decimal.NewFromInt(1))
	}
	return n.IntPart()
}
