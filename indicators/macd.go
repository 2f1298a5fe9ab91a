package indicators

import "fmt"

// Standard MACD spans.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACDResult holds the MACD line, its signal line and the histogram
// (line - signal), all aligned with the input closes.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow) and its EMA(signal). Because EMA has
// no warmup gate every value is defined for a series of valid closes.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if err := checkPeriod("signal span", signal); err != nil {
		return MACDResult{}, err
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("fast span %d must be less than slow span %d", fast, slow)
	}

	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	sig, err := EMA(line, signal)
	if err != nil {
		return MACDResult{}, err
	}

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{Line: line, Signal: sig, Histogram: hist}, nil
}
