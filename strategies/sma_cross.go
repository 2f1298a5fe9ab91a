package strategies

import (
	"fmt"

	"github.com/rustyeddy/stocksim/indicators"
	"github.com/rustyeddy/stocksim/market"
)

const SMAName = "SMA"

// SMACross is an edge-triggered moving average crossover:
// - Buy when the short SMA moves from <= long to > long
// - Sell on the opposite cross
// - Hold otherwise, and until both averages are defined on the
//   previous and current period
type SMACross struct {
	Short int
	Long  int
}

func NewSMACross(p SMAParams) (*SMACross, error) {
	if p.Short <= 0 || p.Long <= 0 {
		return nil, fmt.Errorf("%w: SMA windows must be positive (short=%d long=%d)", ErrInvalidParams, p.Short, p.Long)
	}
	if p.Short >= p.Long {
		return nil, fmt.Errorf("%w: SMA short window %d must be less than long window %d", ErrInvalidParams, p.Short, p.Long)
	}
	return &SMACross{Short: p.Short, Long: p.Long}, nil
}

func (s *SMACross) Name() string   { return SMAName }
func (s *SMACross) String() string { return fmt.Sprintf("SMA(%d,%d)", s.Short, s.Long) }

// MinPeriods is long+1: the long SMA needs one defined previous period
// before a cross can be seen.
func (s *SMACross) MinPeriods() int { return s.Long + 1 }

func (s *SMACross) Signals(series market.Series) ([]Signal, error) {
	closes := series.Closes()
	short, err := indicators.SMA(closes, s.Short)
	if err != nil {
		return nil, err
	}
	long, err := indicators.SMA(closes, s.Long)
	if err != nil {
		return nil, err
	}

	out := make([]Signal, len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = cross(short[i-1], long[i-1], short[i], long[i])
	}
	return out, nil
}

// cross compares the relation of a to b on two consecutive periods.
func cross(prevA, prevB, curA, curB float64) Signal {
	for _, v := range []float64{prevA, prevB, curA, curB} {
		if !indicators.Defined(v) {
			return Hold
		}
	}
	switch {
	case prevA <= prevB && curA > curB:
		return Buy
	case prevA >= prevB && curA < curB:
		return Sell
	default:
		return Hold
	}
}
