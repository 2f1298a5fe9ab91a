// Package journal persists finished backtest runs: the run summary, its
// trade ledger and its equity curve.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rustyeddy/stocksim/backtest"
)

// TradeRecord is one ledger row of a stored run.
type TradeRecord struct {
	RunID  string
	Seq    int
	Date   time.Time
	Symbol string
	Action string
	Price  float64
	Shares int64

	// signed, negative for BUY
	Amount float64

	// nil on BUY rows
	GainLoss *float64
	Balance  float64
	Reason   string
}

// EquitySnapshot is the account value at the close of one period.
type EquitySnapshot struct {
	RunID  string
	Time   time.Time
	Cash   float64
	Shares int64
	Equity float64
}

type Journal interface {
	RecordBacktest(BacktestRun) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Entry is everything stored for one run.
type Entry struct {
	Run    BacktestRun
	Trades []TradeRecord
	Equity []EquitySnapshot
}

// EntryWriter is implemented by journals that store a whole run at once.
type EntryWriter interface {
	WriteEntry(Entry) error
}

// FromResult converts a simulation result into journal records.
func FromResult(runID string, created time.Time, res *backtest.Result) Entry {
	st := res.Stats
	e := Entry{
		Run: BacktestRun{
			RunID:            runID,
			Created:          created,
			Symbol:           res.Symbol,
			Strategy:         res.Strategy,
			Start:            st.Start,
			End:              st.End,
			Years:            st.ElapsedYears,
			Trades:           st.Trades,
			Wins:             st.Wins,
			Losses:           st.Losses,
			StartBalance:     st.InitialBalance.InexactFloat64(),
			EndBalance:       st.FinalBalance.InexactFloat64(),
			NetPL:            st.TotalGainLoss.InexactFloat64(),
			ReturnPct:        st.TotalReturnPct,
			AnnualReturnPct:  st.AnnualReturnPct,
			WinRate:          st.WinRate,
			ProfitFactor:     st.ProfitFactor,
			MaxDDPct:         st.MaxDDPct,
			InsufficientData: res.InsufficientData,
			Notes:            res.WarningMessages(),
		},
		Trades: make([]TradeRecord, 0, len(res.Ledger)),
		Equity: make([]EquitySnapshot, 0, len(res.Equity)),
	}

	for _, t := range res.Ledger {
		rec := TradeRecord{
			RunID:   runID,
			Seq:     t.Seq,
			Date:    t.Date,
			Symbol:  t.Symbol,
			Action:  string(t.Action),
			Price:   t.Price.InexactFloat64(),
			Shares:  t.Shares,
			Amount:  t.TransactionAmount.InexactFloat64(),
			Balance: t.Balance.InexactFloat64(),
			Reason:  t.Reason,
		}
		if t.GainLoss.Valid {
			gl := t.GainLoss.Decimal.InexactFloat64()
			rec.GainLoss = &gl
		}
		e.Trades = append(e.Trades, rec)
	}

	for _, p := range res.Equity {
		e.Equity = append(e.Equity, EquitySnapshot{
			RunID:  runID,
			Time:   p.Time,
			Cash:   p.Cash.InexactFloat64(),
			Shares: p.Shares,
			Equity: p.Equity.InexactFloat64(),
		})
	}
	return e
}

// Save writes e to j, in one piece when j supports it.
func Save(j Journal, e Entry) error {
	if w, ok := j.(EntryWriter); ok {
		return w.WriteEntry(e)
	}
	if err := j.RecordBacktest(e.Run); err != nil {
		return err
	}
	for _, t := range e.Trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, s := range e.Equity {
		if err := j.RecordEquity(s); err != nil {
			return err
		}
	}
	return nil
}

// Recorder stores runner reports in a Journal.
type Recorder struct {
	Journal Journal
}

func (r Recorder) Record(_ context.Context, rep backtest.Report) error {
	if rep.Result == nil {
		return nil
	}

	e := FromResult(rep.RunID, rep.Started, rep.Result)
	e.Run.Dataset = rep.Job.Dataset
	e.Run.ExitPolicy = rep.Job.Options.Exit.String()

	cfg, err := json.Marshal(rep.Job.Params.WithDefaults())
	if err != nil {
		return err
	}
	e.Run.Config = cfg

	return Save(r.Journal, e)
}
