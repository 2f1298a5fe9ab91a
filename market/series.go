// Package market holds the price series consumed by indicators, strategies
// and the backtest simulator.
package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSeries is returned when a series breaks its ordering or
// field invariants.
var ErrInvalidSeries = errors.New("invalid price series")

// SeriesError pinpoints the candle that failed validation.
type SeriesError struct {
	Index  int
	Time   time.Time
	Reason string
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("invalid price series at index %d (%s): %s",
		e.Index, e.Time.Format("2006-01-02"), e.Reason)
}

func (e *SeriesError) Unwrap() error { return ErrInvalidSeries }

// Series is an ordered, date-deduplicated sequence of candles for one symbol.
// Treat it as immutable once loaded; derived values go in new slices.
type Series struct {
	Symbol  string
	Candles []Candle
}

// NewSeries builds a validated series.
func NewSeries(symbol string, candles []Candle) (Series, error) {
	s := Series{Symbol: symbol, Candles: candles}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Len returns the number of periods in the series.
func (s Series) Len() int { return len(s.Candles) }

// Validate checks that dates are strictly increasing and volumes are
// non-negative. Prices are not checked here: the simulator rejects bad
// prices only at the periods where it has to trade on them.
func (s Series) Validate() error {
	for i, c := range s.Candles {
		if c.Time.IsZero() {
			return &SeriesError{Index: i, Time: c.Time, Reason: "missing date"}
		}
		if c.Volume < 0 {
			return &SeriesError{Index: i, Time: c.Time, Reason: fmt.Sprintf("negative volume %d", c.Volume)}
		}
		if i > 0 && !c.Time.After(s.Candles[i-1].Time) {
			return &SeriesError{Index: i, Time: c.Time, Reason: "dates must be strictly increasing"}
		}
	}
	return nil
}

// Closes returns a fresh slice of close prices aligned with the candles.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Clone returns a deep copy that shares no memory with s.
func (s Series) Clone() Series {
	candles := make([]Candle, len(s.Candles))
	copy(candles, s.Candles)
	return Series{Symbol: s.Symbol, Candles: candles}
}

// First returns the first candle. It panics on an empty series.
func (s Series) First() Candle { return s.Candles[0] }

// Last returns the last candle. It panics on an empty series.
func (s Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

// Between returns the candles whose time falls in [from, to). Zero bounds
// are open.
func (s Series) Between(from, to time.Time) Series {
	out := Series{Symbol: s.Symbol}
	for _, c := range s.Candles {
		if !inRange(c.Time, from, to) {
			continue
		}
		out.Candles = append(out.Candles, c)
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
