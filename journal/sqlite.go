package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// runs are saved from several goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (j *SQLite) RecordBacktest(r BacktestRun) error {
	return insertRun(j.db, r)
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	return insertTrade(j.db, t)
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	return insertEquity(j.db, e)
}

// WriteEntry stores a whole run in one transaction.
func (j *SQLite) WriteEntry(e Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRun(tx, e.Run); err != nil {
		return err
	}
	for _, t := range e.Trades {
		if err := insertTrade(tx, t); err != nil {
			return err
		}
	}
	for _, s := range e.Equity {
		if err := insertEquity(tx, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func insertRun(x execer, r BacktestRun) error {
	notes, err := json.Marshal(nonNil(r.Notes))
	if err != nil {
		return err
	}
	_, err = x.Exec(`
		INSERT INTO backtest_runs
		(run_id, created, dataset, symbol, strategy, config, exit_policy,
		 start_time, end_time, years, trades, wins, losses,
		 start_balance, end_balance, net_pl, return_pct, annual_return_pct,
		 win_rate, profit_factor, max_dd_pct, insufficient_data, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Dataset, r.Symbol, r.Strategy, string(r.Config), r.ExitPolicy,
		r.Start.UTC(), r.End.UTC(), r.Years, r.Trades, r.Wins, r.Losses,
		r.StartBalance, r.EndBalance, r.NetPL, r.ReturnPct, r.AnnualReturnPct,
		r.WinRate, r.ProfitFactor, r.MaxDDPct, r.InsufficientData, string(notes),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", r.RunID, err)
	}
	return nil
}

func insertTrade(x execer, t TradeRecord) error {
	_, err := x.Exec(`
		INSERT INTO trades
		(run_id, seq, date, symbol, action, price, shares, amount, gain_loss, balance, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Seq, t.Date.UTC(), t.Symbol, t.Action, t.Price,
		t.Shares, t.Amount, t.GainLoss, t.Balance, t.Reason,
	)
	return err
}

func insertEquity(x execer, e EquitySnapshot) error {
	_, err := x.Exec(`
		INSERT INTO equity
		(run_id, time, cash, shares, equity)
		VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Cash, e.Shares, e.Equity,
	)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
