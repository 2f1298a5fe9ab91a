// Package indicators provides technical analysis indicators over daily
// close prices.
//
// Every series function returns a new slice aligned index-for-index with
// its input. Periods without enough history hold NaN. Inputs are never
// modified.
package indicators

import (
	"fmt"
	"math"
)

// Indicator computes a single streaming value from closes.
// It is deterministic and safe to drive from a backtest loop.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)" or "EMA(12)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next close.
	Update(x float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, or NaN if !Ready().
	Value() float64
}

// Apply feeds closes through ind and collects one value per close.
// ind is reset first.
func Apply(ind Indicator, closes []float64) []float64 {
	ind.Reset()
	out := make([]float64, len(closes))
	for i, x := range closes {
		ind.Update(x)
		out[i] = ind.Value()
	}
	return out
}

// Defined reports whether v holds a computed value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, period)
	}
	return nil
}
