// Package reporting renders backtest results from stored artifacts as
// Markdown reports and CSV exports. It is a pure read path over the
// trade log, capital series, and score history.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"equity-quant-lab/internal/analytics"
	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	tradeStore   storage.TradeLogStore
	capitalStore storage.CapitalSeriesStore
	scoreStore   storage.ScoreHistoryStore
	window       int
	now          func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator. scoreStore may be nil when
// no rebalance history exists.
func NewGenerator(tradeStore storage.TradeLogStore, capitalStore storage.CapitalSeriesStore, scoreStore storage.ScoreHistoryStore) *Generator {
	return &Generator{
		tradeStore:   tradeStore,
		capitalStore: capitalStore,
		scoreStore:   scoreStore,
		window:       analytics.RollingWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRollingWindow overrides the trailing window for rolling stats.
func (g *Generator) WithRollingWindow(window int) *Generator {
	g.window = window
	return g
}

// Generate builds the report for one run. Capital series are looked up
// as "<runID>:<symbol>"; symbols without a stored series get a row with
// trade counts only.
func (g *Generator) Generate(ctx context.Context, runID string, symbols []string) (*Report, error) {
	report := &Report{
		GeneratedAt: g.now(),
		RunID:       runID,
		SymbolCount: len(symbols),
	}

	allTrades, err := g.tradeStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trade log: %w", err)
	}
	report.Trades = allTrades

	tradesBySymbol := make(map[string][]*domain.TradeRecord)
	for _, t := range allTrades {
		tradesBySymbol[t.Symbol] = append(tradesBySymbol[t.Symbol], t)
	}

	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	var portfolioTrades []*domain.TradeRecord
	for _, symbol := range sorted {
		points, err := g.capitalStore.GetBySeriesID(ctx, runID+":"+symbol)
		if err != nil {
			return nil, fmt.Errorf("load capital series for %s: %w", symbol, err)
		}

		trades := tradesBySymbol[symbol]
		portfolioTrades = append(portfolioTrades, trades...)

		capital := make([]domain.CapitalPoint, len(points))
		for i, p := range points {
			capital[i] = *p
		}
		summary := analytics.Summarize(capital, trades)

		row := SymbolRow{
			Symbol:       symbol,
			TradeCount:   summary.TotalTrades,
			ClosedTrades: summary.ClosedTrades,
			WinRate:      summary.WinRate,
			CAGR:         summary.CAGR,
			CAGRKnown:    summary.CAGRKnown,
			MaxDrawdown:  summary.MaxDrawdown,
			FinalEquity:  summary.FinalCapital,
		}

		if stats := rollingFromPoints(capital, g.window); len(stats.CAGR) > 0 {
			row.Rolling = &RollingRow{
				Window:       g.window,
				FinalCAGR:    stats.FinalCAGR,
				AvgCAGR:      stats.AvgCAGR,
				FinalWinRate: stats.FinalWinRate,
				AvgWinRate:   stats.AvgWinRate,
			}
		}
		report.SymbolRows = append(report.SymbolRows, row)
	}

	report.Portfolio = portfolioFromRows(report.SymbolRows, portfolioTrades)

	if g.scoreStore != nil {
		scores, err := g.scoreStore.Latest(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load score snapshot: %w", err)
		}
		for symbol, score := range scores {
			report.Scores = append(report.Scores, ScoreRow{Symbol: symbol, Score: score})
		}
		sort.Slice(report.Scores, func(i, j int) bool {
			if report.Scores[i].Score != report.Scores[j].Score {
				return report.Scores[i].Score > report.Scores[j].Score
			}
			return report.Scores[i].Symbol < report.Scores[j].Symbol
		})
	}

	return report, nil
}

// RollingSeries returns the full rolling stats for one symbol's equity
// curve, for the CSV export path.
func (g *Generator) RollingSeries(ctx context.Context, runID, symbol string) (*analytics.RollingStats, error) {
	points, err := g.capitalStore.GetBySeriesID(ctx, runID+":"+symbol)
	if err != nil {
		return nil, fmt.Errorf("load capital series for %s: %w", symbol, err)
	}
	capital := make([]domain.CapitalPoint, len(points))
	for i, p := range points {
		capital[i] = *p
	}
	return rollingFromPoints(capital, g.window), nil
}

func rollingFromPoints(capital []domain.CapitalPoint, window int) *analytics.RollingStats {
	dates := make([]time.Time, len(capital))
	values := make([]float64, len(capital))
	for i, p := range capital {
		dates[i] = p.Date
		values[i] = p.Equity
	}
	return analytics.Rolling(dates, values, window)
}

// portfolioFromRows sums per-symbol finals; CAGR and drawdown at the
// portfolio level need the merged equity curve, which the runner
// computes at run time, so the stored-artifact report carries win rate
// and totals only.
func portfolioFromRows(rows []SymbolRow, trades []*domain.TradeRecord) domain.PerformanceSummary {
	var s domain.PerformanceSummary
	s.TotalTrades = len(trades)
	s.WinRate, s.ClosedTrades = analytics.WinRate(trades)
	for _, r := range rows {
		s.FinalCapital += r.FinalEquity
	}
	return s
}
