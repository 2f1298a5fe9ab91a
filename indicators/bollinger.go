package indicators

import (
	"fmt"
	"math"
)

// DefaultNumStdDev is the band width used when none is configured.
const DefaultNumStdDev = 2.0

// StdDev is a streaming sample standard deviation (n-1 denominator) over
// the last period closes.
type StdDev struct {
	sma *SimpleMA
}

func NewStdDev(period int) *StdDev {
	return &StdDev{sma: NewSMA(period)}
}

func (s *StdDev) Name() string     { return fmt.Sprintf("STDDEV(%d)", s.sma.period) }
func (s *StdDev) Warmup() int      { return s.sma.period }
func (s *StdDev) Reset()           { s.sma.Reset() }
func (s *StdDev) Update(x float64) { s.sma.Update(x) }
func (s *StdDev) Ready() bool      { return s.sma.Ready() }

func (s *StdDev) Value() float64 {
	n := len(s.sma.window)
	if !s.Ready() || n < 2 {
		return math.NaN()
	}
	m := mean(s.sma.window)
	ss := 0.0
	for _, x := range s.sma.window {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// RollingStdDev returns the sample standard deviation of the trailing
// window closes. Values before window periods are NaN; a window of 1 has
// no sample deviation and is NaN throughout.
func RollingStdDev(closes []float64, window int) ([]float64, error) {
	if err := checkPeriod("window", window); err != nil {
		return nil, err
	}
	return Apply(NewStdDev(window), closes), nil
}

// Bands holds Bollinger Bands aligned with the input closes.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes SMA(window) +/- k standard deviations. k <= 0 falls
// back to DefaultNumStdDev.
func Bollinger(closes []float64, window int, k float64) (Bands, error) {
	if k <= 0 || math.IsNaN(k) {
		k = DefaultNumStdDev
	}
	mid, err := SMA(closes, window)
	if err != nil {
		return Bands{}, err
	}
	sd, err := RollingStdDev(closes, window)
	if err != nil {
		return Bands{}, err
	}

	b := Bands{
		Middle: mid,
		Upper:  make([]float64, len(closes)),
		Lower:  make([]float64, len(closes)),
	}
	for i := range closes {
		b.Upper[i] = mid[i] + k*sd[i]
		b.Lower[i] = mid[i] - k*sd[i]
	}
	return b, nil
}
