package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/stocksim/backtest"
	"github.com/rustyeddy/stocksim/journal"
	"github.com/rustyeddy/stocksim/market"
	"github.com/rustyeddy/stocksim/strategies"
)

func newBatchCmd(app *App) *cobra.Command {
	var (
		pattern     string
		names       []string
		concurrency int
		noJournal   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run several strategies over many price files",
		Long: `Run every selected strategy over every file matched by --data. Runs
execute in parallel and are stored in the configured journal.

Examples:
  trader batch --data 'data/**/*.csv'
  trader batch --data 'data/*.json' --strategies SMA,MACD --concurrency 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("concurrency") {
				app.Config.Runner.Concurrency = concurrency
			}
			if len(names) == 0 {
				names = strategies.Names()
			}

			jobs, err := batchJobs(app, pattern, names)
			if err != nil {
				return err
			}

			var j journal.Journal
			if !noJournal {
				if j, err = app.OpenJournal(); err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				if j != nil {
					defer j.Close()
				}
			}

			app.Log.Info("batch starting",
				zap.Int("jobs", len(jobs)),
				zap.Int("concurrency", app.Config.Runner.Concurrency))

			reports, err := app.Runner(j).Run(cmd.Context(), jobs)
			printSummary(cmd, reports)
			if err != nil {
				return err
			}

			var failed int
			for _, rep := range reports {
				if rep.Err != nil || rep.RecordErr != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "data", "", "Glob of price files, ** allowed")
	cmd.Flags().StringSliceVar(&names, "strategies", nil, "Strategies to run (default all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel runs (default from config)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not store runs in the journal")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func batchJobs(app *App, pattern string, names []string) ([]backtest.Job, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad --data pattern: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(paths)

	opts := app.Options()
	var jobs []backtest.Job
	for _, path := range paths {
		series, err := market.LoadFile(path, "")
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		for _, name := range names {
			jobs = append(jobs, backtest.Job{
				Dataset:  path,
				Series:   series,
				Strategy: strings.TrimSpace(name),
				Params:   app.Config.Strategy.Params,
				Options:  opts,
			})
		}
	}
	return jobs, nil
}

func printSummary(cmd *cobra.Command, reports []backtest.Report) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSYMBOL\tSTRATEGY\tTRADES\tFINAL\tRETURN %\tSTATUS")
	for _, rep := range reports {
		sym := rep.Job.Series.Symbol
		if rep.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\t%s\n", rep.RunID, sym, rep.Job.Strategy, rep.Kind)
			continue
		}
		res := rep.Result
		status := "ok"
		switch {
		case rep.RecordErr != nil:
			status = "journal error"
		case res.InsufficientData:
			status = "insufficient data"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\t%s\n",
			rep.RunID, res.Symbol, res.Strategy, len(res.Ledger),
			res.Stats.FinalBalance.StringFixed(2), res.Stats.TotalReturnPct, status)
	}
	_ = tw.Flush()
}
