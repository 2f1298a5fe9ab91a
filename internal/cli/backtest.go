package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/stocksim/backtest"
	"github.com/rustyeddy/stocksim/journal"
	"github.com/rustyeddy/stocksim/market"
)

type backtestFlags struct {
	dataPath string
	symbol   string
	strategy string
	fromStr  string
	toStr    string

	short, long          int
	window               int
	numStd               float64
	fast, slow, signal   int
	balance              float64
	stopLoss, takeProfit float64
	minHold              int

	ledgerPath string
	orgPath    string
	asJSON     bool
	noJournal  bool
}

func newBacktestCmd(app *App) *cobra.Command {
	var f backtestFlags

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one strategy over one price file",
		Long: `Simulate a long/flat account trading one symbol on the signals of one
strategy and print the ledger and performance.

Examples:
  trader backtest --data data/AAPL.csv --strategy SMA --short 50 --long 200
  trader backtest --data aapl.json --symbol AAPL --strategy MACD --json
  trader backtest --data data/MSFT.csv --strategy BollingerBands --ledger msft.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, app, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dataPath, "data", "", "Price file (.csv or .json)")
	fl.StringVar(&f.symbol, "symbol", "", "Ticker (default: file name)")
	fl.StringVar(&f.strategy, "strategy", "", "SMA | BollingerBands | MACD (default from config)")
	fl.StringVar(&f.fromStr, "from", "", "Optional first date (YYYY-MM-DD)")
	fl.StringVar(&f.toStr, "to", "", "Optional end date, exclusive (YYYY-MM-DD)")

	fl.IntVar(&f.short, "short", 0, "SMA short window")
	fl.IntVar(&f.long, "long", 0, "SMA long window")
	fl.IntVar(&f.window, "window", 0, "Bollinger window")
	fl.Float64Var(&f.numStd, "num-std", 0, "Bollinger band width in standard deviations")
	fl.IntVar(&f.fast, "fast", 0, "MACD fast EMA span")
	fl.IntVar(&f.slow, "slow", 0, "MACD slow EMA span")
	fl.IntVar(&f.signal, "signal", 0, "MACD signal EMA span")

	fl.Float64Var(&f.balance, "balance", 0, "Initial balance (default from config)")
	fl.Float64Var(&f.stopLoss, "stop-loss", 0, "Exit when close falls this fraction below entry (0.05 = 5%)")
	fl.Float64Var(&f.takeProfit, "take-profit", 0, "Exit when close rises this fraction above entry")
	fl.IntVar(&f.minHold, "min-hold", 0, "Ignore Sell signals for this many periods after entry")

	fl.StringVar(&f.ledgerPath, "ledger", "", "Write the ledger CSV here")
	fl.StringVar(&f.orgPath, "org", "", "Write an Org-mode summary here")
	fl.BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	fl.BoolVar(&f.noJournal, "no-journal", false, "Do not store the run in the journal")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

// jobFromFlags applies command line overrides on top of the config.
func jobFromFlags(cmd *cobra.Command, app *App, f *backtestFlags) (backtest.Job, error) {
	cfg := app.Config
	changed := cmd.Flags().Changed

	params := cfg.Strategy.Params
	if changed("short") {
		params.SMA.Short = f.short
	}
	if changed("long") {
		params.SMA.Long = f.long
	}
	if changed("window") {
		params.Bollinger.Window = f.window
	}
	if changed("num-std") {
		params.Bollinger.NumStdDev = f.numStd
	}
	if changed("fast") {
		params.MACD.Fast = f.fast
	}
	if changed("slow") {
		params.MACD.Slow = f.slow
	}
	if changed("signal") {
		params.MACD.Signal = f.signal
	}

	opts := app.Options()
	if changed("balance") {
		if f.balance <= 0 {
			return backtest.Job{}, fmt.Errorf("--balance must be positive")
		}
		opts.InitialBalance = decimal.NewFromFloat(f.balance)
	}
	if changed("stop-loss") {
		opts.Exit.StopLossPct = f.stopLoss
	}
	if changed("take-profit") {
		opts.Exit.TakeProfitPct = f.takeProfit
	}
	if changed("min-hold") {
		opts.Exit.MinHoldBars = f.minHold
	}

	name := cfg.Strategy.Name
	if f.strategy != "" {
		name = f.strategy
	}

	series, err := market.LoadFile(f.dataPath, f.symbol)
	if err != nil {
		return backtest.Job{}, fmt.Errorf("load %s: %w", f.dataPath, err)
	}
	from, to, err := dateRange(f.fromStr, f.toStr)
	if err != nil {
		return backtest.Job{}, err
	}
	series = series.Between(from, to)

	return backtest.Job{
		Dataset:  f.dataPath,
		Series:   series,
		Strategy: name,
		Params:   params,
		Options:  opts,
	}, nil
}

func runBacktest(cmd *cobra.Command, app *App, f *backtestFlags) error {
	job, err := jobFromFlags(cmd, app, f)
	if err != nil {
		return err
	}

	var j journal.Journal
	if !f.noJournal {
		if j, err = app.OpenJournal(); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if j != nil {
			defer j.Close()
		}
	}

	rep := app.Runner(j).RunOne(cmd.Context(), job)
	if rep.Err != nil {
		return fmt.Errorf("%s: %w", rep.Kind, rep.Err)
	}
	res := rep.Result

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err := enc.Encode(struct {
			RunID    string   `json:"run_id"`
			Warnings []string `json:"warnings,omitempty"`
			*backtest.Result
		}{rep.RunID, res.WarningMessages(), res})
		if err != nil {
			return err
		}
	} else {
		backtest.PrintResult(out, res)
		fmt.Fprintf(out, "Run ID:        %s\n", rep.RunID)
	}

	if f.ledgerPath != "" {
		if err := writeLedger(f.ledgerPath, res); err != nil {
			return err
		}
		app.Log.Info("ledger written", zap.String("path", f.ledgerPath))
	}
	if f.orgPath != "" {
		e := journal.FromResult(rep.RunID, rep.Started, res)
		e.Run.Dataset = job.Dataset
		e.Run.ExitPolicy = job.Options.Exit.String()
		e.Run.OrgPath = f.orgPath
		if err := e.Run.WriteBacktestOrg(); err != nil {
			return fmt.Errorf("write org: %w", err)
		}
		app.Log.Info("org summary written", zap.String("path", f.orgPath))
	}
	return rep.RecordErr
}

func writeLedger(path string, res *backtest.Result) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := journal.WriteLedgerCSV(fh, res.Ledger, res.Stats.FinalBalance); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func dateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		if from, err = market.ParseDate(fromStr); err != nil {
			return from, to, fmt.Errorf("bad --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = market.ParseDate(toStr); err != nil {
			return from, to, fmt.Errorf("bad --to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("--from must be before --to")
	}
	return from, to, nil
}
