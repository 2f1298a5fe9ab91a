// Package metrics holds the Prometheus metrics of backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the backtest runner.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec // labels: strategy, status
	TradesTotal      *prometheus.CounterVec // labels: strategy, action
	RunDuration      prometheus.Histogram
	FinalBalance     *prometheus.GaugeVec // labels: symbol, strategy
	ReturnPct        *prometheus.GaugeVec // labels: symbol, strategy
	InsufficientData prometheus.Counter
	JournalWriteDur  prometheus.Histogram
	RunsInFlight     prometheus.Gauge
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksim_runs_total",
			Help: "Backtest runs finished, by strategy and status (ok, error)",
		}, []string{"strategy", "status"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksim_trades_total",
			Help: "Simulated trades, by strategy and action",
		}, []string{"strategy", "action"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stocksim_run_duration_seconds",
			Help:    "Wall time of one backtest run",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		FinalBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stocksim_final_balance",
			Help: "Final account balance of the last run per symbol and strategy",
		}, []string{"symbol", "strategy"}),
		ReturnPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stocksim_total_return_pct",
			Help: "Total return in percent of the last run per symbol and strategy",
		}, []string{"symbol", "strategy"}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksim_insufficient_data_total",
			Help: "Runs whose series was too short to produce a signal",
		}),
		JournalWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stocksim_journal_write_duration_seconds",
			Help:    "Latency of writing one run to the journal",
			Buckets: prometheus.DefBuckets,
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stocksim_runs_in_flight",
			Help: "Backtest runs currently executing",
		}),
	}

	m.Registry.MustRegister(
		m.RunsTotal,
		m.TradesTotal,
		m.RunDuration,
		m.FinalBalance,
		m.ReturnPct,
		m.InsufficientData,
		m.JournalWriteDur,
		m.RunsInFlight,
	)
	return m
}

// WriteTextfile writes the current values in the Prometheus text format,
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
