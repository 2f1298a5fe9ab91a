package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// KeyPrefix namespaces every key the Redis journal writes.
const KeyPrefix = "stocksim"

// RedisConfig configures the Redis journal.
type RedisConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// per-command timeout, default 5s
	Timeout time.Duration
}

// Redis stores runs as
//
//	stocksim:run:<id>         hash, field "run" holds the summary JSON
//	stocksim:run:<id>:trades  list of trade JSON in ledger order
//	stocksim:run:<id>:equity  list of equity JSON in time order
//	stocksim:runs             sorted set of run IDs scored by creation time
type Redis struct {
	client  *goredis.Client
	timeout time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	r := NewRedisWithClient(client, cfg.Timeout)
	ctx, cancel := r.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *goredis.Client, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Redis{client: client, timeout: timeout}
}

func runKey(id string) string    { return KeyPrefix + ":run:" + id }
func tradesKey(id string) string { return runKey(id) + ":trades" }
func equityKey(id string) string { return runKey(id) + ":equity" }
func runsKey() string            { return KeyPrefix + ":runs" }

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Redis) RecordBacktest(run BacktestRun) error {
	ctx, cancel := r.ctx()
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		return r.queueRun(ctx, p, run)
	})
	return err
}

func (r *Redis) RecordTrade(t TradeRecord) error {
	ctx, cancel := r.ctx()
	defer cancel()

	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, tradesKey(t.RunID), b).Err()
}

func (r *Redis) RecordEquity(e EquitySnapshot) error {
	ctx, cancel := r.ctx()
	defer cancel()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, equityKey(e.RunID), b).Err()
}

// WriteEntry stores a whole run in one MULTI/EXEC block.
func (r *Redis) WriteEntry(e Entry) error {
	ctx, cancel := r.ctx()
	defer cancel()

	trades := make([]any, 0, len(e.Trades))
	for _, t := range e.Trades {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		trades = append(trades, b)
	}
	equity := make([]any, 0, len(e.Equity))
	for _, s := range e.Equity {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		equity = append(equity, b)
	}

	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if err := r.queueRun(ctx, p, e.Run); err != nil {
			return err
		}
		if len(trades) > 0 {
			p.RPush(ctx, tradesKey(e.Run.RunID), trades...)
		}
		if len(equity) > 0 {
			p.RPush(ctx, equityKey(e.Run.RunID), equity...)
		}
		return nil
	})
	return err
}

func (r *Redis) queueRun(ctx context.Context, p goredis.Pipeliner, run BacktestRun) error {
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	p.HSet(ctx, runKey(run.RunID), "run", b, "symbol", run.Symbol, "strategy", run.Strategy)
	p.ZAdd(ctx, runsKey(), &goredis.Z{
		Score:  float64(run.Created.UnixMilli()),
		Member: run.RunID,
	})
	return nil
}

// GetBacktestRun reads back one run summary.
func (r *Redis) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	b, err := r.client.HGet(ctx, runKey(runID), "run").Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return BacktestRun{}, fmt.Errorf("run %q %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}
	var run BacktestRun
	if err := json.Unmarshal(b, &run); err != nil {
		return BacktestRun{}, err
	}
	return run, nil
}

// ListRunIDs returns run IDs, most recent first. limit <= 0 means all.
func (r *Redis) ListRunIDs(ctx context.Context, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	return r.client.ZRevRange(ctx, runsKey(), 0, stop).Result()
}

// ListTradesByRunID returns the ledger of one run in order.
func (r *Redis) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	raw, err := r.client.LRange(ctx, tradesKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(raw))
	for _, s := range raw {
		var t TradeRecord
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ListEquityByRunID returns the equity curve of one run.
func (r *Redis) ListEquityByRunID(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	raw, err := r.client.LRange(ctx, equityKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]EquitySnapshot, 0, len(raw))
	for _, s := range raw {
		var e EquitySnapshot
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
