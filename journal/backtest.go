package journal

import (
	"bytes"
	"io"
	"os"
	"text/template"
	"time"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID   string
	Created time.Time
	Dataset string

	Symbol   string
	Strategy string
	Config   []byte // strategy params as JSON

	// stop-loss / take-profit overlay, "none" when off
	ExitPolicy string

	Start time.Time
	End   time.Time
	Years float64

	// Results
	Trades int
	Wins   int
	Losses int

	StartBalance float64
	EndBalance   float64

	NetPL           float64
	ReturnPct       float64
	AnnualReturnPct float64
	WinRate         float64
	ProfitFactor    float64
	MaxDDPct        float64

	InsufficientData bool

	OrgPath string
	Notes   []string
}

var backtestOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg writes the run summary as an Org-mode entry.
func (v *BacktestRun) RenderOrg(w io.Writer) error {
	return backtestOrg.Execute(w, v)
}

// WriteBacktestOrg renders the run to v.OrgPath.
func (v *BacktestRun) WriteBacktestOrg() error {
	buf := new(bytes.Buffer)
	if err := v.RenderOrg(buf); err != nil {
		return err
	}
	return os.WriteFile(v.OrgPath, buf.Bytes(), 0644)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{if .Start.IsZero}}-{{else}}{{.Start.Format "2006-01-02"}}{{end}}
:END_DATE:    {{if .End.IsZero}}-{{else}}{{.End.Format "2006-01-02"}}{{end}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:ANNUAL_PCT:  {{printf "%.2f" .AnnualReturnPct}}
:MAX_DD_PCT:  {{if ne .MaxDDPct 0.0}}{{printf "%.2f" .MaxDDPct}}{{else}}(max-dd?){{end}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(profit-factor?){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter   | Value |
|-------------+-------|
| Params      | {{if .Config}}{{printf "%s" .Config}}{{else}}-{{end}} |
| Exit Policy | {{if .ExitPolicy}}{{.ExitPolicy}}{{else}}none{{end}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Annual Return:    *{{printf "%.2f" .AnnualReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Profit Factor:    *{{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(profit-factor?){{end}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .InsufficientData }}

Not enough data for the strategy to produce a signal.
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
