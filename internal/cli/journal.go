package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stocksim/journal"
)

func newJournalCmd(app *App) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query stored backtest runs",
		Long: `Query and display backtest runs from the SQLite journal.

Subcommands:
  runs   - List recent runs
  show   - Print the summary of one run
  org    - Print one run as Org-mode, trades included
  trades - List the trades of a run, or all trades in a date range

Examples:
  trader journal runs --limit 10
  trader journal show 01HZX3J8K6QF0V2W3N4M5P6R7S
  trader journal trades --from 2024-01-01 --to 2024-02-01`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to SQLite journal DB (default from config)")

	open := func() (*journal.SQLite, error) {
		path := dbPath
		if path == "" {
			path = app.Config.Journal.DBPath
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	cmd.AddCommand(
		newJournalRunsCmd(open),
		newJournalShowCmd(open),
		newJournalOrgCmd(open),
		newJournalTradesCmd(open),
	)
	return cmd
}

type openFunc func() (*journal.SQLite, error)

func newJournalRunsCmd(open openFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListBacktestRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("query runs: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCREATED\tSYMBOL\tSTRATEGY\tTRADES\tEND BAL\tRETURN %")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
					r.RunID, r.Created.Local().Format("2006-01-02 15:04"),
					r.Symbol, r.Strategy, r.Trades, r.EndBalance, r.ReturnPct)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list, 0 for all")
	return cmd
}

func newJournalShowCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			r, err := j.GetBacktestRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			row := func(k, format string, v ...any) {
				fmt.Fprintf(tw, "%s\t"+format+"\n", append([]any{k}, v...)...)
			}
			row("Run ID", "%s", r.RunID)
			row("Created", "%s", r.Created.Local().Format(time.RFC3339))
			row("Dataset", "%s", r.Dataset)
			row("Symbol", "%s", r.Symbol)
			row("Strategy", "%s", r.Strategy)
			row("Params", "%s", r.Config)
			row("Exit policy", "%s", r.ExitPolicy)
			row("Period", "%s .. %s (%.2f years)", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly), r.Years)
			row("Trades", "%d (%d wins, %d losses)", r.Trades, r.Wins, r.Losses)
			row("Balance", "%.2f -> %.2f", r.StartBalance, r.EndBalance)
			row("Net P/L", "%.2f", r.NetPL)
			row("Return", "%.2f%% (%.2f%% annual)", r.ReturnPct, r.AnnualReturnPct)
			row("Max drawdown", "%.2f%%", r.MaxDDPct)
			for _, n := range r.Notes {
				row("Note", "%s", n)
			}
			return tw.Flush()
		},
	}
}

func newJournalOrgCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "org <run-id>",
		Short: "Print a run and its trades as Org-mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			org, err := j.ExportBacktestOrg(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), org)
			return nil
		},
	}
}

func newJournalTradesCmd(open openFunc) *cobra.Command {
	var fromStr, toStr string

	cmd := &cobra.Command{
		Use:   "trades [run-id]",
		Short: "List trades of a run or trades dated in [--from, --to)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && fromStr == "" && toStr == "" {
				return fmt.Errorf("need a run id or --from/--to")
			}

			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			var recs []journal.TradeRecord
			if len(args) == 1 {
				recs, err = j.ListTradesByRunID(cmd.Context(), args[0])
			} else {
				from, to, derr := dateRange(fromStr, toStr)
				if derr != nil {
					return derr
				}
				if to.IsZero() {
					to = time.Now().AddDate(1, 0, 0)
				}
				recs, err = j.ListTradesBetween(cmd.Context(), from, to)
			}
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromStr, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "end date, exclusive (YYYY-MM-DD)")
	return cmd
}
