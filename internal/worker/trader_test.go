package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/storage/memory"
)

// growthBars is a smooth daily series ending at now; the per-bar growth
// rate orders symbols under the quick score.
func growthBars(symbol string, now time.Time, growth float64) []domain.PriceBar {
	const n = 300
	bars := make([]domain.PriceBar, n)
	price := 100.0
	for i := range bars {
		price *= 1 + growth
		bars[i] = domain.PriceBar{
			Symbol: symbol,
			Date:   now.AddDate(0, 0, i-n+1),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func newTestTrader(provider marketdata.Provider, symbols []string, now time.Time) (*Trader, *memory.TradeLogStore, *memory.CapitalSeriesStore, *recordingNotifier) {
	trades := memory.NewTradeLogStore()
	capital := memory.NewCapitalSeriesStore()
	notifier := &recordingNotifier{}
	tr := NewTrader(provider, nil, trades, capital, notifier, symbols, testLogger())
	tr.SetClock(fixedClock(now))
	return tr, trades, capital, notifier
}

func TestCycleBuysEqualSlots(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: map[string][]domain.PriceBar{
		"AAA": growthBars("AAA", now, 0.003),
		"BBB": growthBars("BBB", now, 0.002),
		"CCC": growthBars("CCC", now, 0.001),
	}}

	tr, trades, capital, notifier := newTestTrader(provider, []string{"AAA", "BBB", "CCC"}, now)
	tr.SetTopN(2)
	tr.SetSeriesID("t1")
	tr.ApplyQuote(marketdata.Quote{Symbol: "AAA", Price: 100})
	tr.ApplyQuote(marketdata.Quote{Symbol: "BBB", Price: 50})
	tr.ApplyQuote(marketdata.Quote{Symbol: "CCC", Price: 10})

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	held := tr.Holdings()
	if len(held) != 2 || held[0] != "AAA" || held[1] != "BBB" {
		t.Fatalf("Holdings() = %v, want [AAA BBB]", held)
	}

	all, err := trades.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d trades, want 2", len(all))
	}
	for _, rec := range all {
		if rec.Action != domain.ActionBuy {
			t.Errorf("trade %s action = %s, want %s", rec.Symbol, rec.Action, domain.ActionBuy)
		}
	}

	// 100k over two equal slots: 500 shares at 100 and 1000 at 50.
	points, err := capital.GetBySeriesID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetBySeriesID() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d capital points, want 1", len(points))
	}
	if points[0].Equity != TraderInitialCapital {
		t.Errorf("equity after full allocation = %v, want %v", points[0].Equity, float64(TraderInitialCapital))
	}

	notifier.mu.Lock()
	notified := len(notifier.trades)
	notifier.mu.Unlock()
	if notified != 2 {
		t.Errorf("notified %d trades, want 2", notified)
	}
}

func TestCycleRotatesOutOfDroppedSymbol(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: map[string][]domain.PriceBar{
		"AAA": growthBars("AAA", now, 0.003),
		"CCC": growthBars("CCC", now, 0.001),
	}}

	tr, trades, _, _ := newTestTrader(provider, []string{"AAA", "CCC"}, now)
	tr.SetTopN(1)
	tr.ApplyQuote(marketdata.Quote{Symbol: "AAA", Price: 100})
	tr.ApplyQuote(marketdata.Quote{Symbol: "CCC", Price: 10})

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("first Cycle() error = %v", err)
	}
	if held := tr.Holdings(); len(held) != 1 || held[0] != "AAA" {
		t.Fatalf("Holdings() after first cycle = %v, want [AAA]", held)
	}

	// CCC overtakes AAA in the quick score.
	provider.mu.Lock()
	provider.bars["AAA"] = growthBars("AAA", now, 0.0005)
	provider.bars["CCC"] = growthBars("CCC", now, 0.004)
	provider.mu.Unlock()

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("second Cycle() error = %v", err)
	}
	if held := tr.Holdings(); len(held) != 1 || held[0] != "CCC" {
		t.Fatalf("Holdings() after rotation = %v, want [CCC]", held)
	}

	all, err := trades.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	var rotations, buys int
	for _, rec := range all {
		switch rec.Action {
		case ActionSellRotation:
			rotations++
			if rec.Symbol != "AAA" {
				t.Errorf("rotation sell on %s, want AAA", rec.Symbol)
			}
		case domain.ActionBuy:
			buys++
		}
	}
	if rotations != 1 || buys != 2 {
		t.Errorf("got %d rotations and %d buys, want 1 and 2", rotations, buys)
	}
}

func TestSelectionPoolIntersectsSnapshot(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: map[string][]domain.PriceBar{
		"AAA": growthBars("AAA", now, 0.001),
		"BBB": growthBars("BBB", now, 0.002),
		"CCC": growthBars("CCC", now, 0.005),
	}}

	history := memory.NewScoreHistoryStore()
	if err := history.Save(context.Background(), now.AddDate(0, 0, -5), domain.ScoreHistory{"AAA": 1.0, "BBB": 2.0}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tr := NewTrader(provider, history, memory.NewTradeLogStore(), memory.NewCapitalSeriesStore(), &recordingNotifier{}, []string{"AAA", "BBB", "CCC"}, testLogger())
	tr.SetClock(fixedClock(now))
	tr.SetTopN(1)
	tr.ApplyQuote(marketdata.Quote{Symbol: "AAA", Price: 10})
	tr.ApplyQuote(marketdata.Quote{Symbol: "BBB", Price: 10})
	tr.ApplyQuote(marketdata.Quote{Symbol: "CCC", Price: 10})

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	// CCC has the best quick score but sits outside the selection pool.
	if held := tr.Holdings(); len(held) != 1 || held[0] != "BBB" {
		t.Fatalf("Holdings() = %v, want [BBB]", held)
	}
}

func TestCycleSkipsSymbolWithoutQuote(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: map[string][]domain.PriceBar{
		"AAA": growthBars("AAA", now, 0.003),
		"BBB": growthBars("BBB", now, 0.002),
	}}

	tr, _, _, _ := newTestTrader(provider, []string{"AAA", "BBB"}, now)
	tr.SetTopN(2)
	tr.ApplyQuote(marketdata.Quote{Symbol: "AAA", Price: 100})

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if held := tr.Holdings(); len(held) != 1 || held[0] != "AAA" {
		t.Fatalf("Holdings() = %v, want [AAA]", held)
	}
}

func TestDailySummaryPostedOncePerDay(t *testing.T) {
	now := time.Date(2025, 6, 10, traderSummaryHour, 5, 0, 0, time.UTC)
	provider := &fakeProvider{bars: map[string][]domain.PriceBar{
		"AAA": growthBars("AAA", now, 0.003),
	}}

	tr, _, _, notifier := newTestTrader(provider, []string{"AAA"}, now)
	tr.SetTopN(1)
	tr.ApplyQuote(marketdata.Quote{Symbol: "AAA", Price: 100})

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("first Cycle() error = %v", err)
	}
	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatalf("second Cycle() error = %v", err)
	}

	summaries := notifier.summaryTexts()
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if !strings.Contains(summaries[0], "daily summary") {
		t.Errorf("summary missing header: %q", summaries[0])
	}
	if !strings.Contains(summaries[0], "AAA") {
		t.Errorf("summary missing holdings: %q", summaries[0])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, _, _, _ := newTestTrader(&fakeProvider{}, []string{"AAA"}, time.Now().UTC())
	tr.SetInterval(time.Millisecond)

	if err := tr.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
