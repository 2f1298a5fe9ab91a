package indicators

import (
	"fmt"
	"math"
)

// SimpleMA is a streaming Simple Moving Average over the last period closes.
type SimpleMA struct {
	period int
	window []float64
}

// NewSMA creates a new Simple Moving Average indicator with the given period.
func NewSMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SimpleMA) Warmup() int  { return m.period }
func (m *SimpleMA) Reset()       { m.window = m.window[:0] }
func (m *SimpleMA) Ready() bool  { return len(m.window) >= m.period }

func (m *SimpleMA) Update(x float64) {
	m.window = append(m.window, x)
	// Keep only the last 'period' closes
	if len(m.window) > m.period {
		m.window = m.window[1:]
	}
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return math.NaN()
	}
	return mean(m.window)
}

// ExponentialMA is a streaming Exponential Moving Average. It is seeded
// with the first close and is ready immediately.
type ExponentialMA struct {
	span  int
	alpha float64
	value float64
	seen  int
}

// NewEMA creates a new Exponential Moving Average with smoothing factor
// 2/(span+1).
func NewEMA(span int) *ExponentialMA {
	return &ExponentialMA{
		span:  span,
		alpha: 2.0 / float64(span+1),
	}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.span) }
func (e *ExponentialMA) Warmup() int  { return 1 }
func (e *ExponentialMA) Ready() bool  { return e.seen > 0 }

func (e *ExponentialMA) Reset() {
	e.value = 0
	e.seen = 0
}

func (e *ExponentialMA) Update(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return math.NaN()
	}
	return e.value
}

// SMA returns the simple moving average of closes. The first window-1
// values are NaN.
func SMA(closes []float64, window int) ([]float64, error) {
	if err := checkPeriod("window", window); err != nil {
		return nil, err
	}
	return Apply(NewSMA(window), closes), nil
}

// EMA returns the exponential moving average of closes with
// alpha = 2/(span+1). Unlike SMA there is no minimum-period gate: the
// first value equals the first close.
func EMA(closes []float64, span int) ([]float64, error) {
	if err := checkPeriod("span", span); err != nil {
		return nil, err
	}
	return Apply(NewEMA(span), closes), nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
