package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage/memory"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func setupTestData(t *testing.T) (*memory.TradeLogStore, *memory.CapitalSeriesStore, *memory.ScoreHistoryStore) {
	t.Helper()
	ctx := context.Background()

	tradeStore := memory.NewTradeLogStore()
	capitalStore := memory.NewCapitalSeriesStore()
	scoreStore := memory.NewScoreHistoryStore()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", Date: day(0), Symbol: "AAA", Action: domain.ActionBuy, Price: 100, Shares: 10, Side: domain.SideLong},
		{TradeID: "t2", Date: day(5), Symbol: "AAA", Action: domain.SellTakeProfit, Price: 170, Shares: 10, Side: domain.SideLong},
		{TradeID: "t3", Date: day(1), Symbol: "BBB", Action: domain.ActionBuy, Price: 50, Shares: 20, Side: domain.SideLong},
		{TradeID: "t4", Date: day(6), Symbol: "BBB", Action: domain.SellStopLoss, Price: 44, Shares: 20, Side: domain.SideLong},
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk trades: %v", err)
	}

	var points []*domain.CapitalPoint
	for i := 0; i < 10; i++ {
		points = append(points,
			&domain.CapitalPoint{SeriesID: "run1:AAA", Date: day(i), Equity: 1000 + float64(i)*70},
			&domain.CapitalPoint{SeriesID: "run1:BBB", Date: day(i), Equity: 1000 - float64(i)*12},
		)
	}
	if err := capitalStore.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk capital: %v", err)
	}

	if err := scoreStore.Save(ctx, day(9), domain.ScoreHistory{"AAA": 3.2, "BBB": 1.1}); err != nil {
		t.Fatalf("Save scores: %v", err)
	}

	return tradeStore, capitalStore, scoreStore
}

func TestGenerate(t *testing.T) {
	tradeStore, capitalStore, scoreStore := setupTestData(t)

	clock := func() time.Time { return day(10) }
	g := NewGenerator(tradeStore, capitalStore, scoreStore).WithClock(clock).WithRollingWindow(5)

	report, err := g.Generate(context.Background(), "run1", []string{"BBB", "AAA"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !report.GeneratedAt.Equal(day(10)) {
		t.Errorf("GeneratedAt = %v, want the injected clock value", report.GeneratedAt)
	}
	if len(report.SymbolRows) != 2 {
		t.Fatalf("got %d symbol rows, want 2", len(report.SymbolRows))
	}
	if report.SymbolRows[0].Symbol != "AAA" || report.SymbolRows[1].Symbol != "BBB" {
		t.Errorf("rows must be sorted by symbol, got %s, %s",
			report.SymbolRows[0].Symbol, report.SymbolRows[1].Symbol)
	}

	aaa := report.SymbolRows[0]
	if aaa.TradeCount != 2 || aaa.ClosedTrades != 1 {
		t.Errorf("AAA trades = %d closed = %d, want 2 and 1", aaa.TradeCount, aaa.ClosedTrades)
	}
	if aaa.WinRate != 1.0 {
		t.Errorf("AAA win rate = %v, want 1.0", aaa.WinRate)
	}
	if !aaa.CAGRKnown || aaa.CAGR <= 0 {
		t.Errorf("AAA CAGR = %v known=%v, want positive and known", aaa.CAGR, aaa.CAGRKnown)
	}
	if aaa.Rolling == nil {
		t.Error("AAA rolling stats missing with a 5-bar window over 10 points")
	}

	bbb := report.SymbolRows[1]
	if bbb.WinRate != 0 {
		t.Errorf("BBB win rate = %v, want 0 after a losing round trip", bbb.WinRate)
	}
	// drawdown is the positive peak-to-trough fraction (peak-value)/peak
	if bbb.MaxDrawdown <= 0 {
		t.Errorf("BBB max drawdown = %v, want a positive fraction", bbb.MaxDrawdown)
	}

	if report.Portfolio.TotalTrades != 4 || report.Portfolio.ClosedTrades != 2 {
		t.Errorf("portfolio trades = %d closed = %d, want 4 and 2",
			report.Portfolio.TotalTrades, report.Portfolio.ClosedTrades)
	}
	if report.Portfolio.WinRate != 0.5 {
		t.Errorf("portfolio win rate = %v, want 0.5", report.Portfolio.WinRate)
	}

	if len(report.Scores) != 2 || report.Scores[0].Symbol != "AAA" {
		t.Errorf("scores = %+v, want AAA first by descending score", report.Scores)
	}
}

func TestGenerateEmptyStores(t *testing.T) {
	g := NewGenerator(memory.NewTradeLogStore(), memory.NewCapitalSeriesStore(), memory.NewScoreHistoryStore())

	report, err := g.Generate(context.Background(), "run1", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(report.SymbolRows) != 0 || len(report.Trades) != 0 || len(report.Scores) != 0 {
		t.Errorf("empty stores must yield an empty report, got %+v", report)
	}
}

func TestRenderMarkdown(t *testing.T) {
	tradeStore, capitalStore, scoreStore := setupTestData(t)
	g := NewGenerator(tradeStore, capitalStore, scoreStore).WithRollingWindow(5)

	report, err := g.Generate(context.Background(), "run1", []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Report: run1",
		"## Portfolio",
		"## Symbol Performance",
		"| AAA |",
		"| BBB |",
		"## Rolling Statistics",
		"## Latest Allocation Scores",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderSymbolCSV(t *testing.T) {
	rows := []SymbolRow{
		{Symbol: "AAA", TradeCount: 2, ClosedTrades: 1, WinRate: 1, CAGR: 0.5, CAGRKnown: true, MaxDrawdown: -0.1, FinalEquity: 1630},
		{Symbol: "BBB", TradeCount: 2, ClosedTrades: 1, WinRate: 0, MaxDrawdown: -0.2, FinalEquity: 892},
	}

	csv := RenderSymbolCSV(rows)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus two rows", len(lines))
	}
	if lines[0] != "symbol,trades,closed,win_rate,cagr,max_drawdown,final_equity" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "AAA,2,1,") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "n/a") {
		t.Errorf("unknown CAGR must render as n/a, got %q", lines[2])
	}
}

func TestRenderRollingCSV(t *testing.T) {
	tradeStore, capitalStore, scoreStore := setupTestData(t)
	g := NewGenerator(tradeStore, capitalStore, scoreStore).WithRollingWindow(5)

	stats, err := g.RollingSeries(context.Background(), "run1", "AAA")
	if err != nil {
		t.Fatalf("RollingSeries: %v", err)
	}
	if len(stats.Dates) == 0 {
		t.Fatal("expected rolling points for a 10-bar curve with window 5")
	}

	csv := RenderRollingCSV("AAA", stats)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if lines[0] != "symbol,date,rolling_cagr,rolling_win_rate" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != len(stats.Dates)+1 {
		t.Errorf("got %d rows, want %d", len(lines)-1, len(stats.Dates))
	}
}
