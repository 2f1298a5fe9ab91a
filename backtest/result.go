package backtest

import (
	"fmt"
	"io"
	"time"
)

// Result is everything one simulation produces.
type Result struct {
	Symbol   string        `json:"symbol"`
	Strategy string        `json:"strategy"`
	Ledger   Ledger        `json:"ledger"`
	Equity   []EquityPoint `json:"-"`
	Stats    Stats         `json:"stats"`

	// InsufficientData is set when the series was too short for the
	// strategy to produce any signal. The ledger is empty in that case.
	InsufficientData bool    `json:"insufficient_data"`
	Warnings         []error `json:"-"`
}

// WarningMessages returns Warnings as strings.
func (r *Result) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Error())
	}
	return out
}

func PrintResult(w io.Writer, r *Result) {
	st := r.Stats

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", formatDate(st.Start))
	fmt.Fprintf(w, "End:           %s\n", formatDate(st.End))
	fmt.Fprintf(w, "Years:         %.2f\n", st.ElapsedYears)

	if len(r.Ledger) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Ledger")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, t := range r.Ledger {
			gl := "-"
			if t.GainLoss.Valid {
				gl = t.GainLoss.Decimal.StringFixed(2)
			}
			fmt.Fprintf(w, "%s  %-4s  %8d @ %10s  amount %12s  gain/loss %10s  balance %12s  %s\n",
				t.DisplayDate(), t.Action, t.Shares, t.Price.StringFixed(2),
				t.TransactionAmount.StringFixed(2), gl, t.Balance.StringFixed(2), t.Reason)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", st.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", st.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", st.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", st.WinRate)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %s\n", st.InitialBalance.StringFixed(2))
	fmt.Fprintf(w, "End Balance:   %s\n", st.FinalBalance.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", st.TotalGainLoss.StringFixed(2))
	fmt.Fprintf(w, "Return:        %.2f%%\n", st.TotalReturnPct)
	if st.DegenerateSpan {
		fmt.Fprintln(w, "Annual Return: n/a (zero-length period)")
	} else {
		fmt.Fprintf(w, "Annual Return: %.2f%%\n", st.AnnualReturnPct)
	}

	if st.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", st.ProfitFactor)
	}
	if st.MaxDDPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", st.MaxDDPct)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, msg := range r.WarningMessages() {
			fmt.Fprintf(w, "- %s\n", msg)
		}
	}

	fmt.Fprintln(w)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DisplayDateLayout)
}
