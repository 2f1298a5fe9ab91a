package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stocksim/backtest"
)

// newTestRedis starts an in-process server and connects a sink to it.
func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: mr.Addr(), Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stocksim:run:R1", runKey("R1"))
	assert.Equal(t, "stocksim:run:R1:trades", tradesKey("R1"))
	assert.Equal(t, "stocksim:run:R1:equity", equityKey("R1"))
	assert.Equal(t, "stocksim:runs", runsKey())
}

func TestNewRedisUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestRedisRoundTrip(t *testing.T) {
	t.Parallel()

	r, _ := newTestRedis(t)
	ctx := context.Background()

	first := sampleEntry(t, "RUN1")
	second := sampleEntry(t, "RUN2")
	second.Run.Created = created.Add(time.Hour)

	require.NoError(t, Save(r, first))
	require.NoError(t, Save(r, second))

	run, err := r.GetBacktestRun(ctx, "RUN1")
	require.NoError(t, err)
	assert.Equal(t, "TEST", run.Symbol)
	assert.InDelta(t, 662, run.EndBalance, 1e-9)
	assert.True(t, run.Created.Equal(created))

	trades, err := r.ListTradesByRunID(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, trades, 4)
	assert.Nil(t, trades[0].GainLoss)
	require.NotNil(t, trades[3].GainLoss)
	assert.InDelta(t, -438, *trades[3].GainLoss, 1e-9)

	eq, err := r.ListEquityByRunID(ctx, "RUN1")
	require.NoError(t, err)
	assert.Len(t, eq, 5)

	ids, err := r.ListRunIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"RUN2", "RUN1"}, ids)

	ids, err = r.ListRunIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"RUN2"}, ids)

	_, err = r.GetBacktestRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisPerRecordWrites(t *testing.T) {
	t.Parallel()

	r, _ := newTestRedis(t)
	ctx := context.Background()

	e := sampleEntry(t, "RUN1")
	require.NoError(t, r.RecordBacktest(e.Run))
	for _, tr := range e.Trades {
		require.NoError(t, r.RecordTrade(tr))
	}
	require.NoError(t, r.RecordEquity(e.Equity[0]))

	trades, err := r.ListTradesByRunID(ctx, "RUN1")
	require.NoError(t, err)
	assert.Len(t, trades, 4)

	eq, err := r.ListEquityByRunID(ctx, "RUN1")
	require.NoError(t, err)
	assert.Len(t, eq, 1)
}

func TestRedisKeyLayout(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t)
	require.NoError(t, Save(r, sampleEntry(t, "RUN1")))

	assert.Equal(t, "TEST", mr.HGet(runKey("RUN1"), "symbol"))
	assert.Equal(t, "SMA(2,3)", mr.HGet(runKey("RUN1"), "strategy"))

	var run BacktestRun
	require.NoError(t, json.Unmarshal([]byte(mr.HGet(runKey("RUN1"), "run")), &run))
	assert.Equal(t, "RUN1", run.RunID)

	trades, err := mr.List(tradesKey("RUN1"))
	require.NoError(t, err)
	assert.Len(t, trades, 4)

	equity, err := mr.List(equityKey("RUN1"))
	require.NoError(t, err)
	assert.Len(t, equity, 5)

	score, err := mr.ZScore(runsKey(), "RUN1")
	require.NoError(t, err)
	assert.Equal(t, float64(created.UnixMilli()), score)
}

func TestRedisWriteEntryIsAtomic(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t)
	e := sampleEntry(t, "RUN1")
	require.NoError(t, r.WriteEntry(e))
	require.NoError(t, r.WriteEntry(sampleEntry(t, "RUN2")))

	ids, err := r.ListRunIDs(context.Background(), 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"RUN1", "RUN2"}, ids)
	assert.True(t, mr.Exists(tradesKey("RUN2")))

	mr.SetError("READONLY You can't write against a read only replica")
	err = r.WriteEntry(sampleEntry(t, "RUN3"))
	require.Error(t, err)
	mr.SetError("")
	assert.False(t, mr.Exists(runKey("RUN3")))
	assert.False(t, mr.Exists(tradesKey("RUN3")))
}

func TestRedisRecorder(t *testing.T) {
	t.Parallel()

	r, _ := newTestRedis(t)
	rep := backtest.Report{
		RunID:   "RUN9",
		Started: created,
		Job:     backtest.Job{Dataset: "mem", Strategy: "SMA"},
		Result:  sampleResult(t),
	}
	require.NoError(t, Recorder{Journal: r}.Record(context.Background(), rep))

	run, err := r.GetBacktestRun(context.Background(), "RUN9")
	require.NoError(t, err)
	assert.Equal(t, "mem", run.Dataset)
	assert.Equal(t, "none", run.ExitPolicy)
	assert.NotEmpty(t, run.Config)
}

func TestRedisServerGone(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t)
	mr.Close()

	require.Error(t, r.RecordBacktest(sampleEntry(t, "RUN1").Run))
	_, err := r.ListRunIDs(context.Background(), 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
