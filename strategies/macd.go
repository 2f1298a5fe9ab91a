package strategies

import (
	"fmt"

	"github.com/rustyeddy/stocksim/indicators"
	"github.com/rustyeddy/stocksim/market"
)

const MACDName = "MACD"

// MACD emits a signal every period: Buy while the MACD line is above its
// signal line, Sell otherwise.
type MACD struct {
	Fast   int
	Slow   int
	Signal int
}

func NewMACD(p MACDParams) (*MACD, error) {
	if p.Fast <= 0 || p.Slow <= 0 || p.Signal <= 0 {
		return nil, fmt.Errorf("%w: MACD spans must be positive (fast=%d slow=%d signal=%d)", ErrInvalidParams, p.Fast, p.Slow, p.Signal)
	}
	if p.Fast >= p.Slow {
		return nil, fmt.Errorf("%w: MACD fast span %d must be less than slow span %d", ErrInvalidParams, p.Fast, p.Slow)
	}
	return &MACD{Fast: p.Fast, Slow: p.Slow, Signal: p.Signal}, nil
}

func (m *MACD) Name() string    { return MACDName }
func (m *MACD) String() string  { return fmt.Sprintf("MACD(%d,%d,%d)", m.Fast, m.Slow, m.Signal) }
func (m *MACD) MinPeriods() int { return 1 }

func (m *MACD) Signals(series market.Series) ([]Signal, error) {
	res, err := indicators.MACD(series.Closes(), m.Fast, m.Slow, m.Signal)
	if err != nil {
		return nil, err
	}

	out := make([]Signal, len(res.Line))
	for i := range res.Line {
		if res.Line[i] > res.Signal[i] {
			out[i] = Buy
		} else {
			out[i] = Sell
		}
	}
	return out, nil
}
