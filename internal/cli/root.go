package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootConfig holds the persistent flags shared by every command.
type RootConfig struct {
	ConfigPath  string
	EnvFile     string
	LogLevel    string
	MetricsFile string
	Trace       bool
}

func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *App) {
	rc := &RootConfig{}
	app := &App{}

	cmd := &cobra.Command{
		Use:           "trader",
		Short:         "Stock signal generation and backtest simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.EnvFile, "env-file", "", "Load environment from this file (default ./.env if present)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&rc.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	cmd.PersistentFlags().BoolVar(&rc.Trace, "trace", false, "Export trace spans to stderr")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.Setup(cmd, rc)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.Close(cmd.Context())
	}

	cmd.AddCommand(
		newBacktestCmd(app),
		newBatchCmd(app),
		newJournalCmd(app),
		newConfigCmd(),
		newVersionCmd(),
	)

	return cmd, app
}

func Execute(ctx context.Context) {
	cmd, app := newRoot()
	err := cmd.ExecuteContext(ctx)

	// PersistentPostRunE is skipped when a command fails
	if cerr := app.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
