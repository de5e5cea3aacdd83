package reporting

import (
	"time"

	"equity-quant-lab/internal/domain"
)

// Report is the rendered output of one backtest run: portfolio and
// per-symbol performance, the trade log, and the latest allocation
// scores.
type Report struct {
	GeneratedAt time.Time
	RunID       string
	SymbolCount int

	Portfolio domain.PerformanceSummary

	// SymbolRows is sorted by symbol.
	SymbolRows []SymbolRow

	// Trades is the full trade log ordered by date.
	Trades []*domain.TradeRecord

	// Scores is the latest persisted score snapshot, sorted descending
	// by score. Empty when no rebalance cycle has run.
	Scores []ScoreRow
}

// SymbolRow is one symbol's performance line.
type SymbolRow struct {
	Symbol       string
	TradeCount   int
	ClosedTrades int
	WinRate      float64
	CAGR         float64
	CAGRKnown    bool
	MaxDrawdown  float64
	FinalEquity  float64

	// Rolling trailing-window statistics over the equity curve; nil
	// when the curve is shorter than the window.
	Rolling *RollingRow
}

// RollingRow condenses a rolling stats series into its headline values.
type RollingRow struct {
	Window       int
	FinalCAGR    float64
	AvgCAGR      float64
	FinalWinRate float64
	AvgWinRate   float64
}

// ScoreRow is one symbol's latest composite score.
type ScoreRow struct {
	Symbol string
	Score  float64
}
