package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in the PROPERTIES drawer so they stay searchable.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("*** %s %s #%d (%s)", t.Action, t.Symbol, t.Seq, shortID(t.RunID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":SEQ: %d\n", t.Seq))
	b.WriteString(fmt.Sprintf(":DATE: %s\n", t.Date.UTC().Format(time.DateOnly)))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":ACTION: %s\n", t.Action))
	b.WriteString(fmt.Sprintf(":SHARES: %d\n", t.Shares))
	b.WriteString(fmt.Sprintf(":PRICE: %.2f\n", t.Price))
	b.WriteString(fmt.Sprintf(":AMOUNT: %.2f\n", t.Amount))
	if t.GainLoss != nil {
		b.WriteString(fmt.Sprintf(":GAIN_LOSS: %.2f\n", *t.GainLoss))
	}
	b.WriteString(fmt.Sprintf(":BALANCE: %.2f\n", t.Balance))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
