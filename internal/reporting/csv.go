package reporting

import (
	"fmt"
	"strings"

	"equity-quant-lab/internal/analytics"
)

// RenderSymbolCSV renders the per-symbol performance table as CSV.
func RenderSymbolCSV(rows []SymbolRow) string {
	var sb strings.Builder

	sb.WriteString("symbol,trades,closed,win_rate,cagr,max_drawdown,final_equity\n")
	for _, r := range rows {
		cagr := "n/a"
		if r.CAGRKnown {
			cagr = fmt.Sprintf("%.6f", r.CAGR)
		}
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.6f,%s,%.6f,%.2f\n",
			r.Symbol,
			r.TradeCount,
			r.ClosedTrades,
			r.WinRate,
			cagr,
			r.MaxDrawdown,
			r.FinalEquity,
		))
	}

	return sb.String()
}

// RenderRollingCSV renders a rolling stats series as CSV, one row per
// window position.
func RenderRollingCSV(symbol string, stats *analytics.RollingStats) string {
	var sb strings.Builder

	sb.WriteString("symbol,date,rolling_cagr,rolling_win_rate\n")
	for i := range stats.Dates {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%.6f\n",
			symbol,
			stats.Dates[i].Format("2006-01-02"),
			stats.CAGR[i],
			stats.WinRate[i],
		))
	}

	return sb.String()
}
