package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbols: %d | Trades: %d\n\n", r.SymbolCount, r.Portfolio.TotalTrades))

	// Portfolio
	sb.WriteString("## Portfolio\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Final Capital | %.2f |\n", r.Portfolio.FinalCapital))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", r.Portfolio.WinRate))
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", r.Portfolio.ClosedTrades))
	sb.WriteString("\n")

	// Per-symbol performance
	sb.WriteString("## Symbol Performance\n\n")
	if len(r.SymbolRows) > 0 {
		sb.WriteString("| Symbol | Trades | Closed | WinRate | CAGR | MaxDD | Final Equity |\n")
		sb.WriteString("|--------|--------|--------|---------|------|-------|-------------|\n")
		for _, row := range r.SymbolRows {
			cagr := "n/a"
			if row.CAGRKnown {
				cagr = fmt.Sprintf("%.4f", row.CAGR)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %s | %.4f | %.2f |\n",
				row.Symbol, row.TradeCount, row.ClosedTrades, row.WinRate,
				cagr, row.MaxDrawdown, row.FinalEquity))
		}
	} else {
		sb.WriteString("No symbol results available.\n")
	}
	sb.WriteString("\n")

	// Rolling stats
	sb.WriteString("## Rolling Statistics\n\n")
	var any bool
	for _, row := range r.SymbolRows {
		if row.Rolling == nil {
			continue
		}
		if !any {
			sb.WriteString("| Symbol | Window | Final CAGR | Avg CAGR | Final WinRate | Avg WinRate |\n")
			sb.WriteString("|--------|--------|------------|----------|---------------|-------------|\n")
			any = true
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f | %.4f |\n",
			row.Symbol, row.Rolling.Window,
			row.Rolling.FinalCAGR, row.Rolling.AvgCAGR,
			row.Rolling.FinalWinRate, row.Rolling.AvgWinRate))
	}
	if !any {
		sb.WriteString("Equity curves shorter than the rolling window.\n")
	}
	sb.WriteString("\n")

	// Latest scores
	sb.WriteString("## Latest Allocation Scores\n\n")
	if len(r.Scores) > 0 {
		sb.WriteString("| Symbol | Score |\n")
		sb.WriteString("|--------|-------|\n")
		for _, s := range r.Scores {
			sb.WriteString(fmt.Sprintf("| %s | %.4f |\n", s.Symbol, s.Score))
		}
	} else {
		sb.WriteString("No rebalance cycle has run.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
