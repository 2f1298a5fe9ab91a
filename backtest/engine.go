// Package backtest simulates a single-position long/flat account against a
// per-period signal series and derives performance statistics from the
// resulting ledger.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/risk"
	"github.com/rustyeddy/stocksim/strategies"
)

// ErrInvalidOptions is returned for a bad Options value.
var ErrInvalidOptions = errors.New("invalid backtest options")

// Options controls one simulation.
type Options struct {
	// InitialBalance is the starting cash. Zero means DefaultInitialBalance,
	// so a zero-cash account cannot be expressed; pass a balance below the
	// cheapest close (e.g. 0.01) to simulate one that can never buy.
	InitialBalance decimal.Decimal

	// Exit is the optional stop-loss / take-profit / minimum hold overlay.
	// The zero value disables it.
	Exit risk.ExitPolicy
}

func (o Options) withDefaults() Options {
	if o.InitialBalance.IsZero() {
		o.InitialBalance = DefaultInitialBalance
	}
	return o
}

func (o Options) validate() error {
	if o.InitialBalance.IsNegative() {
		return fmt.Errorf("%w: initial balance %s is negative", ErrInvalidOptions, o.InitialBalance)
	}
	if err := o.Exit.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Simulate computes the strategy's signals for s and runs them through
// Execute. A series shorter than the strategy's MinPeriods is not an
// error: the run completes flat and Result.InsufficientData is set.
func Simulate(s market.Series, strat strategies.Strategy, opts Options) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: Strategy is required")
	}
	if err := validateSeries(s); err != nil {
		return nil, err
	}

	signals, err := strat.Signals(s)
	if err != nil {
		return nil, fmt.Errorf("backtest: %s signals: %w", strat, err)
	}

	res, err := execute(s, signals, opts)
	if err != nil {
		return nil, err
	}

	res.Strategy = strat.String()
	if s.Len() < strat.MinPeriods() && !res.InsufficientData {
		res.InsufficientData = true
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: %d periods, %s needs %d",
			ErrInsufficientData, s.Len(), strat, strat.MinPeriods()))
	}
	return res, nil
}

// Execute walks signals in series order with a Flat/Long state machine:
//
//	Flat + Buy  -> buy floor(cash/close) shares, go Long (stay Flat if 0)
//	Long + Sell -> sell every share, go Flat
//	otherwise   -> no change
//
// At most one transition happens per period. A position still open after
// the last period is sold at the last close. Acting at a price that is
// missing, non-positive or non-finite aborts the run with a *PriceError.
func Execute(s market.Series, signals []strategies.Signal, opts Options) (*Result, error) {
	if err := validateSeries(s); err != nil {
		return nil, err
	}
	return execute(s, signals, opts)
}

func validateSeries(s market.Series) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("backtest: %s: %w", s.Symbol, err)
	}
	return nil
}

func execute(s market.Series, signals []strategies.Signal, opts Options) (*Result, error) {
	if len(signals) != s.Len() {
		return nil, fmt.Errorf("backtest: %d signals for %d periods", len(signals), s.Len())
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sim := &simulator{
		symbol: s.Symbol,
		opts:   opts,
		acct:   Account{Cash: opts.InitialBalance},
		equity: make([]EquityPoint, 0, s.Len()),
	}

	for i, c := range s.Candles {
		if err := sim.step(i, c, signals[i]); err != nil {
			return nil, err
		}
	}
	if sim.pos.Open() {
		last := s.Len() - 1
		if err := sim.liquidate(last, s.Candles[last]); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Symbol: s.Symbol,
		Ledger: sim.ledger,
		Equity: sim.equity,
	}
	if s.Len() == 0 {
		res.InsufficientData = true
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: empty series", ErrInsufficientData))
	}
	res.Stats = ComputeStats(res.Ledger, res.Equity, opts.InitialBalance, sim.acct.Cash, s.Candles)
	return res, nil
}

type simulator struct {
	symbol string
	opts   Options

	acct   Account
	pos    Position
	ledger Ledger
	equity []EquityPoint

	// last valid close, used to mark equity across bad prices
	mark decimal.Decimal
}

func (sim *simulator) step(i int, c market.Candle, sig strategies.Signal) error {
	if validPrice(c.Close) {
		sim.mark = decimal.NewFromFloat(c.Close)
	}

	switch {
	case sim.pos.Open():
		if reason := sim.exitReason(i, c, sig); reason != "" {
			price, err := sim.priceAt(i, c)
			if err != nil {
				return err
			}
			sim.sell(c, price, reason)
		}

	case sig == strategies.Buy:
		price, err := sim.priceAt(i, c)
		if err != nil {
			return err
		}
		sim.buy(i, c, price)
	}

	sim.snapshot(c)
	return nil
}

// exitReason decides whether an open position closes this period.
// Overlay exits take precedence over the signal.
func (sim *simulator) exitReason(i int, c market.Candle, sig strategies.Signal) string {
	exit := sim.opts.Exit
	if exit.Enabled() {
		if reason, hit := exit.CheckExit(sim.pos.EntryPrice.InexactFloat64(), c.Close); hit {
			return reason
		}
	}
	if sig == strategies.Sell && exit.AllowSignalExit(i-sim.pos.EntryIndex) {
		return risk.ReasonSignal
	}
	return ""
}

func (sim *simulator) buy(i int, c market.Candle, price decimal.Decimal) {
	shares := risk.Shares(sim.acct.Cash, price)
	if shares == 0 {
		return
	}

	cost := price.Mul(decimal.NewFromInt(shares))
	sim.acct.Cash = sim.acct.Cash.Sub(cost)
	sim.pos = Position{
		Shares:     shares,
		EntryPrice: price,
		EntryIndex: i,
		EntryTime:  c.Time,
	}
	sim.record(Trade{
		Date:              c.Time,
		Action:            BUY,
		Price:             price,
		Shares:            shares,
		TransactionAmount: cost.Neg(),
		Reason:            risk.ReasonSignal,
	})
}

func (sim *simulator) sell(c market.Candle, price decimal.Decimal, reason string) {
	proceeds := sim.pos.Value(price)
	gain := proceeds.Sub(sim.pos.Cost())

	sim.acct.Cash = sim.acct.Cash.Add(proceeds)
	shares := sim.pos.Shares
	sim.pos = Position{}
	sim.record(Trade{
		Date:              c.Time,
		Action:            SELL,
		Price:             price,
		Shares:            shares,
		TransactionAmount: proceeds,
		GainLoss:          decimal.NewNullDecimal(gain),
		Reason:            reason,
	})
}

func (sim *simulator) liquidate(i int, c market.Candle) error {
	price, err := sim.priceAt(i, c)
	if err != nil {
		return err
	}
	sim.sell(c, price, risk.ReasonEndOfData)

	// the last snapshot was taken while still long
	last := &sim.equity[len(sim.equity)-1]
	last.Cash = sim.acct.Cash
	last.Shares = 0
	last.Equity = sim.acct.Cash
	return nil
}

func (sim *simulator) record(t Trade) {
	t.Seq = len(sim.ledger) + 1
	t.Symbol = sim.symbol
	t.Balance = sim.acct.Cash
	sim.ledger = append(sim.ledger, t)
}

func (sim *simulator) snapshot(c market.Candle) {
	eq := sim.acct.Cash
	if sim.pos.Open() {
		eq = eq.Add(sim.pos.Value(sim.mark))
	}
	sim.equity = append(sim.equity, EquityPoint{
		Time:   c.Time,
		Cash:   sim.acct.Cash,
		Shares: sim.pos.Shares,
		Equity: eq,
	})
}

func (sim *simulator) priceAt(i int, c market.Candle) (decimal.Decimal, error) {
	if !validPrice(c.Close) {
		return decimal.Zero, &PriceError{Symbol: sim.symbol, Index: i, Time: c.Time, Price: c.Close}
	}
	return decimal.NewFromFloat(c.Close), nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
