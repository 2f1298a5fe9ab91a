package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DisplayDateLayout is the date format used in ledger records.
const DisplayDateLayout = "01/02/2006"

// ErrInvalidLedger is returned by Ledger.Validate.
var ErrInvalidLedger = errors.New("invalid ledger")

type Action string

const (
	BUY  Action = "BUY"
	SELL Action = "SELL"
)

// Trade is one ledger entry. TransactionAmount is signed: negative for the
// cash paid on a BUY, positive for the cash received on a SELL. GainLoss is
// only valid on SELL trades.
type Trade struct {
	Seq               int
	Date              time.Time
	Symbol            string
	Action            Action
	Price             decimal.Decimal
	Shares            int64
	TransactionAmount decimal.Decimal
	GainLoss          decimal.NullDecimal
	Balance           decimal.Decimal
	Reason            string
}

// DisplayDate formats the trade date as MM/DD/YYYY.
func (t Trade) DisplayDate() string {
	return t.Date.Format(DisplayDateLayout)
}

// Record is the flat, serializable form of a Trade.
type Record struct {
	Date              string   `json:"date"`
	Symbol            string   `json:"symbol"`
	Action            string   `json:"action"`
	Price             float64  `json:"price"`
	Shares            int64    `json:"shares"`
	TransactionAmount float64  `json:"transaction_amount"`
	GainLoss          *float64 `json:"gain_loss"`
	Balance           float64  `json:"balance"`
	Reason            string   `json:"reason,omitempty"`
}

func (t Trade) Record() Record {
	r := Record{
		Date:              t.DisplayDate(),
		Symbol:            t.Symbol,
		Action:            string(t.Action),
		Price:             t.Price.InexactFloat64(),
		Shares:            t.Shares,
		TransactionAmount: t.TransactionAmount.InexactFloat64(),
		Balance:           t.Balance.InexactFloat64(),
		Reason:            t.Reason,
	}
	if t.GainLoss.Valid {
		gl := t.GainLoss.Decimal.InexactFloat64()
		r.GainLoss = &gl
	}
	return r
}

func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}

// Ledger is the append-only, chronological list of trades of one run.
type Ledger []Trade

// Records converts every trade to its serializable form.
func (l Ledger) Records() []Record {
	out := make([]Record, len(l))
	for i, t := range l {
		out[i] = t.Record()
	}
	return out
}

// Open reports whether the last trade left a position open.
func (l Ledger) Open() bool {
	return len(l) > 0 && l[len(l)-1].Action == BUY
}

// TotalGainLoss sums GainLoss over SELL trades.
func (l Ledger) TotalGainLoss() decimal.Decimal {
	total := decimal.Zero
	for _, t := range l {
		if t.Action == SELL && t.GainLoss.Valid {
			total = total.Add(t.GainLoss.Decimal)
		}
	}
	return total
}

// Validate checks that actions alternate BUY, SELL, ... starting with BUY,
// every trade has shares, and each SELL closes the shares of its BUY.
func (l Ledger) Validate() error {
	var open int64
	for i, t := range l {
		if t.Shares <= 0 {
			return fmt.Errorf("%w: trade %d has %d shares", ErrInvalidLedger, i, t.Shares)
		}
		switch t.Action {
		case BUY:
			if open != 0 {
				return fmt.Errorf("%w: trade %d is a BUY while long", ErrInvalidLedger, i)
			}
			if t.GainLoss.Valid {
				return fmt.Errorf("%w: trade %d is a BUY with gain/loss", ErrInvalidLedger, i)
			}
			open = t.Shares
		case SELL:
			if open == 0 {
				return fmt.Errorf("%w: trade %d is a SELL while flat", ErrInvalidLedger, i)
			}
			if t.Shares != open {
				return fmt.Errorf("%w: trade %d sells %d shares of %d", ErrInvalidLedger, i, t.Shares, open)
			}
			open = 0
		default:
			return fmt.Errorf("%w: trade %d has action %q", ErrInvalidLedger, i, t.Action)
		}
		if i > 0 && t.Date.Before(l[i-1].Date) {
			return fmt.Errorf("%w: trade %d is out of order", ErrInvalidLedger, i)
		}
	}
	return nil
}
