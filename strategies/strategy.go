// Package strategies turns a price series into a per-period trading signal.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/stocksim/market"
)

var (
	// ErrInvalidStrategy is returned for an unknown strategy identifier.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrInvalidParams is returned when strategy parameters are out of range.
	ErrInvalidParams = errors.New("invalid strategy parameters")
)

// Signal is the per-period decision emitted by a strategy.
type Signal int8

const (
	Sell Signal = -1
	Hold Signal = 0
	Buy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	case Hold:
		return "Hold"
	default:
		return fmt.Sprintf("Signal(%d)", int8(s))
	}
}

// Strategy maps a series to one Signal per candle.
type Strategy interface {
	// Name returns the identifier the strategy is registered under.
	Name() string

	// String describes the strategy with its parameters, e.g. "SMA(50,200)".
	String() string

	// MinPeriods is the shortest series that can produce an actionable
	// (non-Hold) signal.
	MinPeriods() int

	// Signals returns a new slice aligned index-for-index with s.Candles.
	Signals(s market.Series) ([]Signal, error)
}

// Constructor builds a strategy from parameters.
type Constructor func(Params) (Strategy, error)

var registry = map[string]registration{}

type registration struct {
	name string
	ctor Constructor
}

// Register makes a strategy available to New. Identifiers are matched
// case-insensitively.
func Register(name string, ctor Constructor) {
	registry[key(name)] = registration{name: name, ctor: ctor}
}

// New builds the strategy registered under name. Zero-valued parameters
// take their defaults.
func New(name string, p Params) (Strategy, error) {
	reg, ok := registry[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrInvalidStrategy, name, strings.Join(Names(), ", "))
	}
	return reg.ctor(p.WithDefaults())
}

// Lookup returns the registered identifier matching name, in its
// canonical spelling.
func Lookup(name string) (string, bool) {
	reg, ok := registry[key(name)]
	return reg.name, ok
}

// Names lists the registered identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, reg := range registry {
		names = append(names, reg.name)
	}
	sort.Strings(names)
	return names
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func init() {
	Register(SMAName, func(p Params) (Strategy, error) { return NewSMACross(p.SMA) })
	Register(BollingerName, func(p Params) (Strategy, error) { return NewBollinger(p.Bollinger) })
	Register(MACDName, func(p Params) (Strategy, error) { return NewMACD(p.MACD) })
}
