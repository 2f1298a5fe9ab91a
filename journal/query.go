package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a run is not in the journal.
var ErrNotFound = errors.New("not found")

const runColumns = `run_id, created, dataset, symbol, strategy, config, exit_policy,
	start_time, end_time, years, trades, wins, losses,
	start_balance, end_balance, net_pl, return_pct, annual_return_pct,
	win_rate, profit_factor, max_dd_pct, insufficient_data, notes`

const tradeColumns = `run_id, seq, date, symbol, action, price, shares, amount, gain_loss, balance, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (BacktestRun, error) {
	var (
		r      BacktestRun
		config string
		notes  string
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Dataset, &r.Symbol, &r.Strategy, &config, &r.ExitPolicy,
		&r.Start, &r.End, &r.Years, &r.Trades, &r.Wins, &r.Losses,
		&r.StartBalance, &r.EndBalance, &r.NetPL, &r.ReturnPct, &r.AnnualReturnPct,
		&r.WinRate, &r.ProfitFactor, &r.MaxDDPct, &r.InsufficientData, &notes,
	)
	if err != nil {
		return BacktestRun{}, err
	}
	if config != "" {
		r.Config = []byte(config)
	}
	if err := json.Unmarshal([]byte(notes), &r.Notes); err != nil {
		return BacktestRun{}, fmt.Errorf("journal: run %s notes: %w", r.RunID, err)
	}
	return r, nil
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.RunID,
		&rec.Seq,
		&rec.Date,
		&rec.Symbol,
		&rec.Action,
		&rec.Price,
		&rec.Shares,
		&rec.Amount,
		&rec.GainLoss,
		&rec.Balance,
		&rec.Reason,
	)
	return rec, err
}

// GetBacktestRun returns a single run summary by ID.
func (j *SQLite) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM backtest_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("run %q %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}
	return r, nil
}

// ListBacktestRuns returns the most recent runs first. limit <= 0 means all.
func (j *SQLite) ListBacktestRuns(ctx context.Context, limit int) ([]BacktestRun, error) {
	q := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesByRunID returns the ledger of one run in order.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
}

// ListTradesBetween returns trades of every run dated within [start, end).
func (j *SQLite) ListTradesBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, run_id ASC, seq ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(ctx context.Context, q string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityByRunID returns the equity curve of one run in time order.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, time, cash, shares, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Time, &e.Cash, &e.Shares, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportBacktestOrg loads a run and its trades and returns the Org block.
func (j *SQLite) ExportBacktestOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetBacktestRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := r.RenderOrg(&b); err != nil {
		return "", err
	}
	if len(trades) > 0 {
		b.WriteString("\n** Trades\n")
		b.WriteString(FormatTradesOrg(trades))
		b.WriteString("\n")
	}
	return b.String(), nil
}
