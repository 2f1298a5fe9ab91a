package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/strategies"
)

var (
	// ErrInvalidPriceData aborts a run that has to trade at a missing,
	// non-positive or non-finite price.
	ErrInvalidPriceData = errors.New("invalid price data")

	// ErrInsufficientData marks a series too short for the strategy to
	// produce any signal. It is reported as a warning, not returned.
	ErrInsufficientData = errors.New("insufficient data")
)

// PriceError locates the period with a bad price.
type PriceError struct {
	Symbol string
	Index  int
	Time   time.Time
	Price  float64
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("%s: price %v at index %d (%s)",
		ErrInvalidPriceData, e.Price, e.Index, e.Time.Format(DisplayDateLayout))
}

func (e *PriceError) Unwrap() error { return ErrInvalidPriceData }

// Kind is a stable error category for transport layers.
type Kind string

const (
	KindNone             Kind = ""
	KindInvalidStrategy  Kind = "InvalidStrategy"
	KindInvalidParams    Kind = "InvalidParams"
	KindInvalidSeries    Kind = "InvalidSeries"
	KindInvalidPriceData Kind = "InvalidPriceData"
	KindInsufficientData Kind = "InsufficientData"
	KindCanceled         Kind = "Canceled"
	KindInternal         Kind = "Internal"
)

// Classify maps err to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, strategies.ErrInvalidStrategy):
		return KindInvalidStrategy
	case errors.Is(err, strategies.ErrInvalidParams), errors.Is(err, ErrInvalidOptions):
		return KindInvalidParams
	case errors.Is(err, market.ErrInvalidSeries):
		return KindInvalidSeries
	case errors.Is(err, ErrInvalidPriceData):
		return KindInvalidPriceData
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
