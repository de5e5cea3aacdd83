package backtest

import (
	"errors"
	"testing"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/indicator"
)

// risingBars builds a steady 0.5%-per-bar climb with flat volume.
func risingBars(n int) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	price := 100.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price *= 1.005
		bars[i] = domain.PriceBar{
			Symbol: "UP",
			Date:   start.AddDate(0, 0, i),
			Open:   price * 0.999,
			High:   price * 1.001,
			Low:    price * 0.998,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func TestRunSymbolInsufficientBars(t *testing.T) {
	_, err := NewEngine().RunSymbol("run:UP", "UP", risingBars(100), 100_000)
	if !errors.Is(err, ErrInsufficientBars) {
		t.Fatalf("got %v, want ErrInsufficientBars", err)
	}
}

func TestRunSymbolRisingPriceBuys(t *testing.T) {
	// a volume surge on a fresh high in a bull regime with positive
	// MACD and saturated RSI triggers a long entry
	bars := risingBars(200)
	entryBar := 170
	bars[entryBar].Volume = 2000

	result, err := NewEngine().RunSymbol("run:UP", "UP", bars, 100_000)
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("got %d trades, want exactly one entry", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.Action != domain.ActionBuy {
		t.Errorf("action = %q, want BUY", trade.Action)
	}
	if !trade.Date.Equal(bars[entryBar].Date) {
		t.Errorf("entry date = %v, want %v", trade.Date, bars[entryBar].Date)
	}
	if trade.Shares <= 0 {
		t.Errorf("shares = %d, want positive", trade.Shares)
	}

	// monotone climb: the position rides to the end, marked to market
	if result.FinalEquity <= 100_000 {
		t.Errorf("final equity = %v, want above the slot", result.FinalEquity)
	}
	for _, tr := range result.Trades {
		if tr.Action == domain.SellStopLoss {
			t.Error("stop loss must not fire on a monotone climb")
		}
	}
}

func TestRunSymbolStopLossAndShock(t *testing.T) {
	bars := risingBars(200)
	entryBar := 170
	bars[entryBar].Volume = 2000

	// one 12% crash bar right after entry
	crashBar := entryBar + 1
	crashPrice := bars[entryBar].Close * 0.88
	bars[crashBar].Close = crashPrice
	bars[crashBar].Low = crashPrice * 0.998
	bars[crashBar].High = bars[entryBar].Close
	// keep the rest flat at the crashed level so nothing re-enters
	for i := crashBar + 1; i < len(bars); i++ {
		bars[i].Close = crashPrice
		bars[i].High = crashPrice * 1.001
		bars[i].Low = crashPrice * 0.998
	}

	result, err := NewEngine().RunSymbol("run:UP", "UP", bars, 100_000)
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}

	if len(result.Trades) != 2 {
		t.Fatalf("got %d trades, want entry plus stop-loss exit", len(result.Trades))
	}
	exit := result.Trades[1]
	if exit.Action != domain.SellStopLoss {
		t.Errorf("exit action = %q, want SELL_STOP_LOSS", exit.Action)
	}
	if !exit.Date.Equal(bars[crashBar].Date) {
		t.Errorf("exit date = %v, want the crash bar", exit.Date)
	}

	var sawStopLoss, sawShock bool
	for _, ev := range result.Events {
		switch ev.Kind {
		case EventStopLoss:
			sawStopLoss = true
		case EventShock:
			sawShock = true
		}
	}
	if !sawStopLoss {
		t.Error("missing stop-loss event")
	}
	if !sawShock {
		t.Error("a 12% single-bar equity drop must raise a shock event")
	}
}

func TestRunSymbolReentersAfterSameBarExit(t *testing.T) {
	// slow climb, entry on a volume surge, a sharp 3%-per-bar leg, then
	// a 0.2% grind: momentum rolls over (histogram dips negative) while
	// price still prints fresh highs, so the take-profit exit and a new
	// breakout entry land on the same close
	bars := make([]domain.PriceBar, 260)
	price := 100.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		growth := 0.005
		switch {
		case i > 190:
			growth = 0.002
		case i > 170:
			growth = 0.03
		}
		price *= 1 + growth
		bars[i] = domain.PriceBar{
			Symbol: "UP",
			Date:   start.AddDate(0, 0, i),
			Open:   price * 0.999,
			High:   price * 1.001,
			Low:    price * 0.998,
			Close:  price,
			Volume: 1000,
		}
	}
	bars[170].Volume = 2000
	bars[197].Volume = 2000

	result, err := NewEngine().RunSymbol("run:UP", "UP", bars, 100_000)
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}

	if len(result.Trades) != 3 {
		t.Fatalf("got %d trades, want entry, take-profit, re-entry", len(result.Trades))
	}
	exit, reentry := result.Trades[1], result.Trades[2]
	if exit.Action != domain.SellTakeProfit {
		t.Errorf("second trade action = %q, want SELL_TAKE_PROFIT", exit.Action)
	}
	if reentry.Action != domain.ActionBuy {
		t.Errorf("third trade action = %q, want BUY", reentry.Action)
	}
	if !exit.Date.Equal(reentry.Date) {
		t.Errorf("exit at %v, re-entry at %v, want the same bar", exit.Date, reentry.Date)
	}
}

func TestRunSymbolNoSignalStaysFlat(t *testing.T) {
	// flat volume never clears the surge gate, so nothing trades
	result, err := NewEngine().RunSymbol("run:UP", "UP", risingBars(200), 100_000)
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("got %d trades, want none without a volume surge", len(result.Trades))
	}
	if result.FinalEquity != 100_000 {
		t.Errorf("final equity = %v, want the untouched slot", result.FinalEquity)
	}
}

func TestRunSymbolCapitalSeriesAlignment(t *testing.T) {
	bars := risingBars(200)
	result, err := NewEngine().RunSymbol("run:UP", "UP", bars, 100_000)
	if err != nil {
		t.Fatalf("RunSymbol: %v", err)
	}

	want := len(bars) - indicator.Warmup
	if len(result.Capital) != want {
		t.Fatalf("got %d capital points, want one per post-warmup bar (%d)", len(result.Capital), want)
	}
	if !result.Capital[0].Date.Equal(bars[indicator.Warmup].Date) {
		t.Errorf("first capital point at %v, want first post-warmup bar", result.Capital[0].Date)
	}
	for _, p := range result.Capital {
		if p.SeriesID != "run:UP" {
			t.Fatalf("series id = %q, want run:UP", p.SeriesID)
		}
	}
}
