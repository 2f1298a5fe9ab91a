package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/metrics"
	"github.com/rustyeddy/stocksim/pkg/id"
	"github.com/rustyeddy/stocksim/strategies"
)

var smaParams = strategies.Params{SMA: strategies.SMAParams{Short: 2, Long: 3}}

type fakeRecorder struct {
	mu   sync.Mutex
	reps []Report
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, rep Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reps = append(f.reps, rep)
	return f.err
}

type runnerFixture struct {
	runner *Runner
	logs   *observer.ObservedLogs
	spans  *tracetest.SpanRecorder
	rec    *fakeRecorder
	m      *metrics.Metrics
}

func newRunner(t *testing.T, concurrency int) runnerFixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &fakeRecorder{}
	m := metrics.New()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	return runnerFixture{
		runner: &Runner{
			Concurrency: concurrency,
			Logger:      zap.New(core),
			Metrics:     m,
			Tracer:      tp.Tracer("test"),
			Recorder:    rec,
			Now:         func() time.Time { return clock },
		},
		logs:  logs,
		spans: spans,
		rec:   rec,
		m:     m,
	}
}

func TestRunOne(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 1)
	job := Job{Dataset: "mem", Series: seriesOf(102, 98, 103, 105), Strategy: "SMA", Params: smaParams}

	rep := f.runner.RunOne(context.Background(), job)
	require.NoError(t, rep.Err)
	require.NotNil(t, rep.Result)
	assert.Equal(t, KindNone, rep.Kind)
	assert.Len(t, rep.Result.Ledger, 2)
	assert.Equal(t, "TEST", rep.Result.Symbol)

	ts, err := id.Time(rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Started, ts)

	require.Len(t, f.rec.reps, 1)
	assert.Equal(t, rep.RunID, f.rec.reps[0].RunID)

	entries := f.logs.FilterMessage("backtest finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, rep.RunID, fields["run_id"])
	assert.Equal(t, "100000.00", fields["final_balance"])
	assert.Contains(t, fields, "trace_id")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RunsTotal.WithLabelValues("SMA", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.TradesTotal.WithLabelValues("SMA", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.TradesTotal.WithLabelValues("SMA", "SELL")))
	assert.Equal(t, 100000.0, testutil.ToFloat64(f.m.FinalBalance.WithLabelValues("TEST", "SMA")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.RunsInFlight))

	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "backtest.run", ended[0].Name())
}

func TestRunOneSymbolOverrideDoesNotMutateJob(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 1)
	s := seriesOf(102, 98, 103, 105)
	job := Job{Symbol: "AAPL", Series: s, Strategy: "SMA", Params: smaParams}

	rep := f.runner.RunOne(context.Background(), job)
	require.NoError(t, rep.Err)
	assert.Equal(t, "AAPL", rep.Result.Symbol)
	assert.Equal(t, "AAPL", rep.Result.Ledger[0].Symbol)
	assert.Equal(t, "TEST", s.Symbol)
	assert.Equal(t, 102.0, s.Candles[0].Close)
}

func TestRunOneErrors(t *testing.T) {
	t.Parallel()

	bad := seriesOf(10, 11, 12)
	bad.Candles[2].Time = bad.Candles[0].Time

	tests := []struct {
		name  string
		job   Job
		kind  Kind
		label string
	}{
		{"unknown strategy", Job{Series: seriesOf(1, 2, 3), Strategy: "RSI"}, KindInvalidStrategy, "invalid"},
		{"bad params", Job{Series: seriesOf(1, 2, 3), Strategy: "sma",
			Params: strategies.Params{SMA: strategies.SMAParams{Short: 5, Long: 3}}}, KindInvalidParams, "SMA"},
		{"unordered series", Job{Series: bad, Strategy: "SMA", Params: smaParams}, KindInvalidSeries, "SMA"},
		{"bad price", Job{Series: seriesOf(102, 98, 103, 105, -1), Strategy: "SMA", Params: smaParams}, KindInvalidPriceData, "SMA"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newRunner(t, 1)
			rep := f.runner.RunOne(context.Background(), tt.job)
			require.Error(t, rep.Err)
			assert.Nil(t, rep.Result)
			assert.Equal(t, tt.kind, rep.Kind)

			assert.Empty(t, f.rec.reps)
			assert.Equal(t, 1, f.logs.FilterMessage("backtest failed").Len())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RunsTotal.WithLabelValues(tt.label, "error")))
		})
	}
}

func TestRunMetricLabelsAreCanonical(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 2)
	jobs := []Job{
		{Series: seriesOf(102, 98, 103, 105), Strategy: "sma", Params: smaParams},
		{Series: seriesOf(102, 98, 103, 105), Strategy: " SMA ", Params: smaParams},
		{Series: seriesOf(1, 2, 3), Strategy: "rsi"},
		{Series: seriesOf(1, 2, 3), Strategy: "whatever"},
	}
	_, err := f.runner.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.RunsTotal.WithLabelValues("SMA", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.RunsTotal.WithLabelValues("invalid", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.TradesTotal.WithLabelValues("SMA", "BUY")))
	assert.Equal(t, 2, testutil.CollectAndCount(f.m.RunsTotal), "one series per label pair")
}

func TestRunOneInsufficientDataLogsWarning(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 1)
	rep := f.runner.RunOne(context.Background(), Job{Series: seriesOf(1, 2), Strategy: "SMA", Params: smaParams})
	require.NoError(t, rep.Err)
	assert.True(t, rep.Result.InsufficientData)

	warns := f.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.Equal(t, "insufficient data", warns[0].Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.InsufficientData))

	// still journaled
	assert.Len(t, f.rec.reps, 1)
}

func TestRunOneRecordError(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 1)
	f.rec.err = errors.New("disk full")

	rep := f.runner.RunOne(context.Background(), Job{Series: seriesOf(102, 98, 103, 105), Strategy: "SMA", Params: smaParams})
	require.NoError(t, rep.Err)
	require.Error(t, rep.RecordErr)
	assert.NotNil(t, rep.Result)
	assert.Equal(t, 1, f.logs.FilterMessage("journal write failed").Len())
}

func TestRunBatch(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 4)

	var jobs []Job
	for seed := int64(0); seed < 6; seed++ {
		s := randomWalk(seed, 120)
		for _, name := range strategies.Names() {
			jobs = append(jobs, Job{Series: s, Strategy: name, Params: strategies.Params{
				SMA:       strategies.SMAParams{Short: 5, Long: 20},
				Bollinger: strategies.BollingerParams{Window: 10},
			}})
		}
	}
	jobs = append(jobs, Job{Series: seriesOf(1, 2, 3), Strategy: "nope"})

	var seen int
	f.runner.OnReport = func(Report) { seen++ }

	reports, err := f.runner.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, reports, len(jobs))
	assert.Equal(t, len(jobs), seen)

	ids := map[string]bool{}
	for i, rep := range reports {
		assert.Equal(t, jobs[i].Strategy, rep.Job.Strategy, "reports keep job order")
		assert.False(t, ids[rep.RunID], "run ids are unique")
		ids[rep.RunID] = true

		if i == len(jobs)-1 {
			assert.Equal(t, KindInvalidStrategy, rep.Kind)
			continue
		}
		require.NoError(t, rep.Err)
		assert.NoError(t, rep.Result.Ledger.Validate())

		// same input, same answer
		again, err := Simulate(jobs[i].Series, mustStrategy(t, jobs[i].Strategy, jobs[i].Params), Options{})
		require.NoError(t, err)
		assert.True(t, again.Stats.FinalBalance.Equal(rep.Result.Stats.FinalBalance))
	}
	assert.Len(t, f.rec.reps, len(jobs)-1)

	var batch int
	for _, s := range f.spans.Ended() {
		if s.Name() == "backtest.batch" {
			batch++
		}
	}
	assert.Equal(t, 1, batch)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	f := newRunner(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		{Series: seriesOf(102, 98, 103, 105), Strategy: "SMA", Params: smaParams},
		{Series: seriesOf(102, 98, 103, 105), Strategy: "MACD"},
	}
	reports, err := f.runner.Run(ctx, jobs)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.Equal(t, KindCanceled, rep.Kind)
		assert.Nil(t, rep.Result)
	}
}

func TestRunnerZeroValue(t *testing.T) {
	t.Parallel()

	var r Runner
	reports, err := r.Run(context.Background(), []Job{
		{Series: seriesOf(102, 98, 103, 105), Strategy: "sma", Params: smaParams},
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NoError(t, reports[0].Err)
	assert.Len(t, reports[0].Result.Ledger, 2)
}

func TestJobSeriesIsNotShared(t *testing.T) {
	t.Parallel()

	s := market.Series{Symbol: "TEST"}
	s.Candles = seriesOf(102, 98, 103, 105).Candles

	var r Runner
	_, err := r.Run(context.Background(), []Job{
		{Series: s, Strategy: "SMA", Params: smaParams},
		{Series: s, Symbol: "OTHER", Strategy: "SMA", Params: smaParams},
	})
	require.NoError(t, err)
	assert.Equal(t, "TEST", s.Symbol)
}
