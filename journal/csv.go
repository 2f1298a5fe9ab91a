package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/stocksim/backtest"
)

// CSV file names inside the directory given to NewCSV.
const (
	RunsFile   = "runs.csv"
	TradesFile = "trades.csv"
	EquityFile = "equity.csv"
)

var (
	runsHeader = []string{"run_id", "created", "dataset", "symbol", "strategy", "exit_policy",
		"start", "end", "years", "trades", "wins", "losses", "start_balance", "end_balance",
		"net_pl", "return_pct", "annual_return_pct", "win_rate", "profit_factor", "max_dd_pct",
		"insufficient_data", "notes"}
	tradesHeader = []string{"run_id", "seq", "date", "symbol", "action", "price", "shares",
		"amount", "gain_loss", "balance", "reason"}
	equityHeader = []string{"run_id", "time", "cash", "shares", "equity"}
)

type CSVJournal struct {
	mu     sync.Mutex
	runs   *csv.Writer
	trades *csv.Writer
	equity *csv.Writer
	files  []*os.File
}

// NewCSV creates runs.csv, trades.csv and equity.csv in dir.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)

		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.runs, err = open(RunsFile, runsHeader); err == nil {
		if j.trades, err = open(TradesFile, tradesHeader); err == nil {
			j.equity, err = open(EquityFile, equityHeader)
		}
	}
	if err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordBacktest(r BacktestRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writeRun(r)
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writeTrade(t)
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writeEquity(e)
}

// WriteEntry writes a whole run under one lock so rows of concurrent runs
// do not interleave.
func (j *CSVJournal) WriteEntry(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writeRun(e.Run); err != nil {
		return err
	}
	for _, t := range e.Trades {
		if err := j.writeTrade(t); err != nil {
			return err
		}
	}
	for _, s := range e.Equity {
		if err := j.writeEquity(s); err != nil {
			return err
		}
	}
	return nil
}

func (j *CSVJournal) writeRun(r BacktestRun) error {
	return write(j.runs, []string{
		r.RunID,
		r.Created.UTC().Format(time.RFC3339),
		r.Dataset,
		r.Symbol,
		r.Strategy,
		r.ExitPolicy,
		day(r.Start),
		day(r.End),
		f(r.Years),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		f(r.StartBalance),
		f(r.EndBalance),
		f(r.NetPL),
		f(r.ReturnPct),
		f(r.AnnualReturnPct),
		f(r.WinRate),
		f(r.ProfitFactor),
		f(r.MaxDDPct),
		strconv.FormatBool(r.InsufficientData),
		strings.Join(r.Notes, "; "),
	})
}

func (j *CSVJournal) writeTrade(t TradeRecord) error {
	gl := ""
	if t.GainLoss != nil {
		gl = f(*t.GainLoss)
	}
	return write(j.trades, []string{
		t.RunID,
		strconv.Itoa(t.Seq),
		day(t.Date),
		t.Symbol,
		t.Action,
		f(t.Price),
		strconv.FormatInt(t.Shares, 10),
		f(t.Amount),
		gl,
		f(t.Balance),
		t.Reason,
	})
}

func (j *CSVJournal) writeEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.RunID,
		day(e.Time),
		f(e.Cash),
		strconv.FormatInt(e.Shares, 10),
		f(e.Equity),
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.runs, j.trades, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// ledgerHeader is the column set of the per-run ledger export.
var ledgerHeader = []string{"date", "symbol", "action", "price", "shares",
	"transaction_amount", "gain/loss", "balance"}

// WriteLedgerCSV writes the ledger of one run followed by a single summary
// row "Total Gain/Loss: X | Final Balance: Y".
func WriteLedgerCSV(w io.Writer, ledger backtest.Ledger, final decimal.Decimal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}

	for _, t := range ledger {
		gl := ""
		if t.GainLoss.Valid {
			gl = t.GainLoss.Decimal.String()
		}
		err := cw.Write([]string{
			t.DisplayDate(),
			t.Symbol,
			string(t.Action),
			t.Price.String(),
			strconv.FormatInt(t.Shares, 10),
			t.TransactionAmount.String(),
			gl,
			t.Balance.String(),
		})
		if err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("Total Gain/Loss: %s | Final Balance: %s",
		ledger.TotalGainLoss().StringFixed(2), final.StringFixed(2))
	if err := cw.Write([]string{summary}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
