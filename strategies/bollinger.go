package strategies

import (
	"fmt"

	"github.com/rustyeddy/stocksim/indicators"
	"github.com/rustyeddy/stocksim/market"
)

const BollingerName = "BollingerBands"

// Bollinger is level-triggered mean reversion: Sell above the upper band,
// Buy below the lower band. Each period is judged on its own.
type Bollinger struct {
	Window    int
	NumStdDev float64
}

func NewBollinger(p BollingerParams) (*Bollinger, error) {
	if p.Window < 2 {
		return nil, fmt.Errorf("%w: Bollinger window must be at least 2, got %d", ErrInvalidParams, p.Window)
	}
	if p.NumStdDev <= 0 {
		return nil, fmt.Errorf("%w: Bollinger num_std must be positive, got %g", ErrInvalidParams, p.NumStdDev)
	}
	return &Bollinger{Window: p.Window, NumStdDev: p.NumStdDev}, nil
}

func (b *Bollinger) Name() string    { return BollingerName }
func (b *Bollinger) String() string  { return fmt.Sprintf("BollingerBands(%d,%g)", b.Window, b.NumStdDev) }
func (b *Bollinger) MinPeriods() int { return b.Window }

func (b *Bollinger) Signals(series market.Series) ([]Signal, error) {
	closes := series.Closes()
	bands, err := indicators.Bollinger(closes, b.Window, b.NumStdDev)
	if err != nil {
		return nil, err
	}

	out := make([]Signal, len(closes))
	for i, c := range closes {
		// NaN bands compare false on both sides.
		switch {
		case c > bands.Upper[i]:
			out[i] = Sell
		case c < bands.Lower[i]:
			out[i] = Buy
		}
	}
	return out, nil
}
