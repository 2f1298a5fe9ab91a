package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitialBalance is the starting cash of a run.
var DefaultInitialBalance = decimal.NewFromInt(100000)

// Account is the cash side of a run.
type Account struct {
	Cash decimal.Decimal
}

// Position is the single open lot. The zero value is flat.
type Position struct {
	Shares     int64
	EntryPrice decimal.Decimal
	EntryIndex int
	EntryTime  time.Time
}

func (p Position) Open() bool { return p.Shares > 0 }

// Cost is what the position was opened for.
func (p Position) Cost() decimal.Decimal {
	return p.EntryPrice.Mul(decimal.NewFromInt(p.Shares))
}

// Value marks the position at price.
func (p Position) Value(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Shares))
}

// EquityPoint is the account value at the close of one period.
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Cash   decimal.Decimal `json:"cash"`
	Shares int64           `json:"shares"`
	Equity decimal.Decimal `json:"equity"`
}
