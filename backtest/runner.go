package backtest

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/stocksim/logger"
	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/metrics"
	"github.com/rustyeddy/stocksim/pkg/id"
	"github.com/rustyeddy/stocksim/strategies"
	stocktrace "github.com/rustyeddy/stocksim/trace"
)

// Job is one series run through one strategy.
type Job struct {
	// Symbol overrides Series.Symbol when set.
	Symbol string

	// Dataset names where Series came from, e.g. a file path.
	Dataset string

	Series   market.Series
	Strategy string
	Params   strategies.Params
	Options  Options
}

func (j Job) symbol() string {
	if j.Symbol != "" {
		return j.Symbol
	}
	return j.Series.Symbol
}

// Report is the outcome of one Job. Err and Result are mutually exclusive.
type Report struct {
	RunID    string
	Job      Job
	Started  time.Time
	Duration time.Duration

	Result *Result
	Err    error
	Kind   Kind

	// RecordErr is set when the run succeeded but could not be stored.
	RecordErr error
}

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, rep Report) error
}

// Runner executes jobs with bounded parallelism. A failing job does not
// stop the others; each gets its own Report.
type Runner struct {
	// Concurrency limits parallel jobs; <= 0 means 1.
	Concurrency int

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Recorder Recorder

	// Now is the clock used for run IDs and Report.Started.
	Now func() time.Time

	// OnReport is called once per finished job. Calls are serialized.
	OnReport func(Report)

	mu sync.Mutex
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) log() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.Nop()
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}
	return stocktrace.Tracer()
}

// Run executes every job and returns their reports in job order. The
// error is non-nil only when ctx ended before all jobs ran; jobs that
// never started report KindCanceled.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Report, error) {
	ctx, span := r.tracer().Start(ctx, "backtest.batch",
		trace.WithAttributes(attribute.Int("jobs", len(jobs))))
	defer span.End()

	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}

	reports := make([]Report, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			reports[i] = r.RunOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return reports, err
	}
	return reports, nil
}

// RunOne executes a single job.
func (r *Runner) RunOne(ctx context.Context, job Job) Report {
	started := r.now()
	rep := Report{
		RunID:   id.NewAt(started),
		Job:     job,
		Started: started,
	}

	ctx, span := r.tracer().Start(ctx, "backtest.run", trace.WithAttributes(
		attribute.String("run_id", rep.RunID),
		attribute.String("symbol", job.symbol()),
		attribute.String("strategy", job.Strategy),
		attribute.Int("periods", job.Series.Len()),
	))
	defer span.End()

	log := logger.WithContext(ctx, r.log()).With(
		zap.String("run_id", rep.RunID),
		zap.String("symbol", job.symbol()),
		zap.String("strategy", job.Strategy),
	)

	m := r.Metrics
	if m != nil {
		m.RunsInFlight.Inc()
		defer m.RunsInFlight.Dec()
	}

	wall := time.Now()
	if err := ctx.Err(); err != nil {
		rep.Err = err
	} else {
		rep.Result, rep.Err = simulateJob(job)
	}
	rep.Duration = time.Since(wall)
	rep.Kind = Classify(rep.Err)

	if rep.Err != nil {
		span.RecordError(rep.Err)
		span.SetStatus(codes.Error, string(rep.Kind))
		log.Error("backtest failed", zap.String("kind", string(rep.Kind)), zap.Error(rep.Err))
	} else {
		res := rep.Result
		span.SetAttributes(
			attribute.Int("trades", len(res.Ledger)),
			attribute.Bool("insufficient_data", res.InsufficientData),
		)
		if res.InsufficientData {
			log.Warn("insufficient data", zap.Strings("warnings", res.WarningMessages()))
		}
		log.Info("backtest finished",
			zap.Int("periods", job.Series.Len()),
			zap.Int("trades", len(res.Ledger)),
			zap.String("final_balance", res.Stats.FinalBalance.StringFixed(2)),
			zap.Float64("return_pct", res.Stats.TotalReturnPct),
			zap.Duration("elapsed", rep.Duration),
		)
		r.record(ctx, log, &rep)
	}

	r.observe(rep)
	if r.OnReport != nil {
		r.mu.Lock()
		r.OnReport(rep)
		r.mu.Unlock()
	}
	return rep
}

func simulateJob(job Job) (*Result, error) {
	strat, err := strategies.New(job.Strategy, job.Params)
	if err != nil {
		return nil, err
	}

	// strategies and the simulator never share the caller's candles
	s := job.Series.Clone()
	s.Symbol = job.symbol()
	return Simulate(s, strat, job.Options)
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, rep *Report) {
	if r.Recorder == nil {
		return
	}

	start := time.Now()
	err := r.Recorder.Record(ctx, *rep)
	if r.Metrics != nil {
		r.Metrics.JournalWriteDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		rep.RecordErr = err
		log.Error("journal write failed", zap.Error(err))
	}
}

func (r *Runner) observe(rep Report) {
	m := r.Metrics
	if m == nil {
		return
	}

	status := "ok"
	if rep.Err != nil {
		status = "error"
	}
	strat := strategyLabel(rep.Job.Strategy)
	m.RunsTotal.WithLabelValues(strat, status).Inc()
	m.RunDuration.Observe(rep.Duration.Seconds())

	res := rep.Result
	if res == nil {
		return
	}
	for _, t := range res.Ledger {
		m.TradesTotal.WithLabelValues(strat, string(t.Action)).Inc()
	}
	sym := rep.Job.symbol()
	m.FinalBalance.WithLabelValues(sym, strat).Set(res.Stats.FinalBalance.InexactFloat64())
	m.ReturnPct.WithLabelValues(sym, strat).Set(res.Stats.TotalReturnPct)
	if res.InsufficientData {
		m.InsufficientData.Inc()
	}
}

// strategyLabel keeps metric label values to the registered identifiers.
func strategyLabel(name string) string {
	if canon, ok := strategies.Lookup(name); ok {
		return canon
	}
	return "invalid"
}
