package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stocksim/market"
)

// DaysPerYear converts an elapsed day count into years.
const DaysPerYear = 365.25

// Stats summarizes a finished run.
type Stats struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	TotalGainLoss  decimal.Decimal `json:"total_gain_loss"`

	TotalReturnPct  float64 `json:"total_return_pct"`
	AnnualReturnPct float64 `json:"annual_return_pct"`

	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	ElapsedYears float64   `json:"elapsed_years"`

	// DegenerateSpan is set when ElapsedYears <= 0; AnnualReturnPct is 0.
	DegenerateSpan bool `json:"degenerate_span"`

	// Round trips, i.e. SELL trades.
	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDDPct     float64 `json:"max_drawdown_pct"`
}

// ComputeStats derives the run statistics from the ledger, the per-period
// equity curve and the dates of the series.
func ComputeStats(ledger Ledger, equity []EquityPoint, initial, final decimal.Decimal, candles []market.Candle) Stats {
	st := Stats{
		InitialBalance: initial,
		FinalBalance:   final,
		TotalGainLoss:  ledger.TotalGainLoss(),
	}

	if initial.IsPositive() {
		ratio := final.Div(initial).InexactFloat64()
		st.TotalReturnPct = (ratio - 1) * 100

		if len(candles) > 0 {
			st.Start = candles[0].Time
			st.End = candles[len(candles)-1].Time
			st.ElapsedYears = ElapsedYears(st.Start, st.End)
		}
		st.AnnualReturnPct = AnnualReturnPct(ratio, st.ElapsedYears)
	}
	st.DegenerateSpan = st.ElapsedYears <= 0

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	for _, t := range ledger {
		if t.Action != SELL || !t.GainLoss.Valid {
			continue
		}
		st.Trades++
		gl := t.GainLoss.Decimal
		switch {
		case gl.IsPositive():
			st.Wins++
			grossWin = grossWin.Add(gl)
		case gl.IsNegative():
			st.Losses++
			grossLoss = grossLoss.Add(gl.Abs())
		}
	}
	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades) * 100
	}
	if grossLoss.IsPositive() {
		st.ProfitFactor = grossWin.Div(grossLoss).InexactFloat64()
	}

	st.MaxDDPct = MaxDrawdownPct(equity)
	return st
}

// ElapsedYears is the number of whole calendar days from start to end
// divided by DaysPerYear.
func ElapsedYears(start, end time.Time) float64 {
	days := math.Round(dateOf(end).Sub(dateOf(start)).Hours() / 24)
	return days / DaysPerYear
}

// AnnualReturnPct compounds ratio (final/initial) over years. It is 0 when
// years <= 0 or ratio is not positive.
func AnnualReturnPct(ratio, years float64) float64 {
	if years <= 0 || ratio <= 0 {
		return 0
	}
	return (math.Pow(ratio, 1/years) - 1) * 100
}

// MaxDrawdownPct is the largest peak-to-trough fall of the equity curve in
// percent of the peak.
func MaxDrawdownPct(equity []EquityPoint) float64 {
	peak := decimal.Zero
	maxDD := 0.0
	for _, p := range equity {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(p.Equity).Div(peak).InexactFloat64() * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
