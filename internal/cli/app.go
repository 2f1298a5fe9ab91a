package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/stocksim/backtest"
	"github.com/rustyeddy/stocksim/config"
	"github.com/rustyeddy/stocksim/journal"
	"github.com/rustyeddy/stocksim/logger"
	"github.com/rustyeddy/stocksim/metrics"
	stocktrace "github.com/rustyeddy/stocksim/trace"
)

// App is the state built from the persistent flags before a command runs.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics

	shutdown stocktrace.ShutdownFunc
	ready    bool
}

// Setup loads .env and config, applies environment and flag overrides and
// builds the logger, metrics and tracer.
func (a *App) Setup(cmd *cobra.Command, rc *RootConfig) error {
	var envFiles []string
	if rc.EnvFile != "" {
		envFiles = append(envFiles, rc.EnvFile)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return err
	}

	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = rc.LogLevel
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = rc.MetricsFile
	}
	if flags.Changed("trace") {
		cfg.Trace.Enabled = rc.Trace
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	cfg.Trace.Writer = cmd.ErrOrStderr()
	shutdown, err := stocktrace.Init(cfg.Trace, version)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}

	a.Config = cfg
	a.Log = log
	a.Metrics = metrics.New()
	a.shutdown = shutdown
	a.ready = true
	return nil
}

// Close writes the metrics textfile and flushes traces and logs. It is
// safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	if !a.ready {
		return nil
	}
	a.ready = false

	var errs []error
	if path := a.Config.Metrics.Textfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		} else {
			a.Log.Debug("metrics written", zap.String("path", path))
		}
	}
	if err := a.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("trace: %w", err))
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}

// OpenJournal opens the configured journal. It returns nil for type none.
func (a *App) OpenJournal() (journal.Journal, error) {
	jc := a.Config.Journal
	switch jc.Type {
	case "", config.JournalNone:
		return nil, nil
	case config.JournalCSV:
		j, err := journal.NewCSV(jc.Dir)
		if err != nil {
			return nil, err
		}
		return j, nil
	case config.JournalSQLite:
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	case config.JournalRedis:
		j, err := journal.NewRedis(journal.RedisConfig{
			Addr:     jc.Redis.Addr,
			Password: jc.Redis.Password,
			DB:       jc.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}

// Runner builds a runner wired to the app's logger and metrics. j may be
// nil.
func (a *App) Runner(j journal.Journal) *backtest.Runner {
	r := &backtest.Runner{
		Concurrency: a.Config.Runner.Concurrency,
		Logger:      a.Log,
		Metrics:     a.Metrics,
	}
	if j != nil {
		r.Recorder = journal.Recorder{Journal: j}
	}
	return r
}

// Options returns the simulation options from config.
func (a *App) Options() backtest.Options {
	return backtest.Options{
		InitialBalance: a.Config.InitialBalance(),
		Exit:           a.Config.Risk,
	}
}
