package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stocksim/backtest"
	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/risk"
	"github.com/rustyeddy/stocksim/strategies"
)

var created = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seriesOf(closes ...float64) market.Series {
	s := market.Series{Symbol: "TEST"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.Candles = append(s.Candles, market.Candle{
			Time:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		})
	}
	return s
}

// sampleResult buys 100 @ 10, sells @ 11, buys 73 @ 15 and is liquidated
// @ 9, ending with 662 of 1000.
func sampleResult(t *testing.T) *backtest.Result {
	t.Helper()

	s := seriesOf(10, 12, 11, 15, 9)
	sig := []strategies.Signal{strategies.Buy, strategies.Hold, strategies.Sell, strategies.Buy, strategies.Hold}
	res, err := backtest.Execute(s, sig, backtest.Options{InitialBalance: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	res.Strategy = "SMA(2,3)"
	return res
}

func sampleEntry(t *testing.T, runID string) Entry {
	t.Helper()
	return FromResult(runID, created, sampleResult(t))
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	e := sampleEntry(t, "RUN1")

	r := e.Run
	assert.Equal(t, "RUN1", r.RunID)
	assert.Equal(t, created, r.Created)
	assert.Equal(t, "TEST", r.Symbol)
	assert.Equal(t, "SMA(2,3)", r.Strategy)
	assert.Equal(t, 2, r.Trades)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 1000, r.StartBalance, 1e-9)
	assert.InDelta(t, 662, r.EndBalance, 1e-9)
	assert.InDelta(t, -338, r.NetPL, 1e-9)
	assert.InDelta(t, -33.8, r.ReturnPct, 1e-9)
	assert.False(t, r.InsufficientData)
	assert.Empty(t, r.Notes)

	require.Len(t, e.Trades, 4)
	buy := e.Trades[0]
	assert.Equal(t, "RUN1", buy.RunID)
	assert.Equal(t, 1, buy.Seq)
	assert.Equal(t, "BUY", buy.Action)
	assert.Equal(t, int64(100), buy.Shares)
	assert.InDelta(t, -1000, buy.Amount, 1e-9)
	assert.Nil(t, buy.GainLoss)

	last := e.Trades[3]
	assert.Equal(t, "SELL", last.Action)
	require.NotNil(t, last.GainLoss)
	assert.InDelta(t, -438, *last.GainLoss, 1e-9)
	assert.InDelta(t, 662, last.Balance, 1e-9)
	assert.Equal(t, risk.ReasonEndOfData, last.Reason)

	require.Len(t, e.Equity, 5)
	assert.InDelta(t, 0, e.Equity[0].Cash, 1e-9)
	assert.Equal(t, int64(100), e.Equity[0].Shares)
	assert.InDelta(t, 662, e.Equity[4].Equity, 1e-9)
}

func TestFromResultInsufficientData(t *testing.T) {
	t.Parallel()

	res, err := backtest.Execute(market.Series{Symbol: "TEST"}, nil, backtest.Options{})
	require.NoError(t, err)

	e := FromResult("RUN1", created, res)
	assert.True(t, e.Run.InsufficientData)
	assert.Len(t, e.Run.Notes, 1)
	assert.Empty(t, e.Trades)
	assert.Empty(t, e.Equity)
}

type memJournal struct {
	runs   []BacktestRun
	trades []TradeRecord
	equity []EquitySnapshot
	failOn string
	closed bool
}

func (m *memJournal) RecordBacktest(r BacktestRun) error {
	if m.failOn == "run" {
		return errors.New("boom")
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *memJournal) RecordTrade(t TradeRecord) error {
	if m.failOn == "trade" {
		return errors.New("boom")
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *memJournal) RecordEquity(e EquitySnapshot) error {
	m.equity = append(m.equity, e)
	return nil
}

func (m *memJournal) Close() error {
	m.closed = true
	return nil
}

func TestSave(t *testing.T) {
	t.Parallel()

	m := &memJournal{}
	require.NoError(t, Save(m, sampleEntry(t, "RUN1")))
	assert.Len(t, m.runs, 1)
	assert.Len(t, m.trades, 4)
	assert.Len(t, m.equity, 5)

	bad := &memJournal{failOn: "trade"}
	assert.Error(t, Save(bad, sampleEntry(t, "RUN2")))
	assert.Empty(t, bad.equity)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	m := &memJournal{}
	rec := Recorder{Journal: m}

	rep := backtest.Report{
		RunID:   "RUN1",
		Started: created,
		Job: backtest.Job{
			Dataset:  "data/TEST.csv",
			Strategy: "SMA",
			Params:   strategies.Params{SMA: strategies.SMAParams{Short: 2, Long: 3}},
			Options:  backtest.Options{Exit: risk.ExitPolicy{StopLossPct: 0.05}},
		},
		Result: sampleResult(t),
	}
	require.NoError(t, rec.Record(context.Background(), rep))

	require.Len(t, m.runs, 1)
	r := m.runs[0]
	assert.Equal(t, "data/TEST.csv", r.Dataset)
	assert.Equal(t, rep.Job.Options.Exit.String(), r.ExitPolicy)
	assert.Contains(t, string(r.Config), `"short":2`)
	assert.Contains(t, string(r.Config), `"window":20`)

	// failed runs carry no result and are not stored
	require.NoError(t, rec.Record(context.Background(), backtest.Report{RunID: "RUN2"}))
	assert.Len(t, m.runs, 1)
}
