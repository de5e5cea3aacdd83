package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"equity-quant-lab/internal/domain"
)

func TestCAGR_KnownValue(t *testing.T) {
	// Doubling over exactly two years: sqrt(2) - 1.
	got, err := CAGR(10000, 20000, 2)
	if err != nil {
		t.Fatalf("CAGR: %v", err)
	}
	want := math.Sqrt2 - 1
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("CAGR = %f, want %f", got, want)
	}
}

func TestCAGR_ScaleInvariant(t *testing.T) {
	a, err := CAGR(10000, 17500, 3.2)
	if err != nil {
		t.Fatalf("CAGR: %v", err)
	}
	b, err := CAGR(20000, 35000, 3.2)
	if err != nil {
		t.Fatalf("CAGR: %v", err)
	}
	if math.Abs(a-b) > 1e-12 {
		t.Errorf("doubling both capitals changed CAGR: %f vs %f", a, b)
	}
}

func TestCAGR_NotComputable(t *testing.T) {
	cases := []struct {
		name              string
		start, end, years float64
	}{
		{"zero start", 0, 100, 1},
		{"negative start", -5, 100, 1},
		{"zero end", 100, 0, 1},
		{"negative end", 100, -1, 1},
		{"zero years", 100, 200, 0},
		{"negative years", 100, 200, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CAGR(tc.start, tc.end, tc.years); !errors.Is(err, ErrNotComputable) {
				t.Errorf("expected ErrNotComputable, got %v", err)
			}
		})
	}
}

// bruteForceMaxDrawdown checks every (peak index <= i, trough index >= i)
// pair; the running-peak method must agree with it on any finite series.
func bruteForceMaxDrawdown(values []float64) float64 {
	maxDD := 0.0
	for i := 0; i < len(values); i++ {
		for j := i; j < len(values); j++ {
			if values[i] > 0 {
				if dd := (values[i] - values[j]) / values[i]; dd > maxDD {
					maxDD = dd
				}
			}
		}
	}
	return maxDD
}

func TestMaxDrawdown_MatchesBruteForce(t *testing.T) {
	series := [][]float64{
		{100, 120, 90, 130, 80, 140},
		{100, 100, 100},
		{50, 40, 30, 20, 10},
		{10, 20, 30, 40},
		{100},
		{100, 150, 75, 150, 60, 200, 190},
	}

	for i, values := range series {
		got := MaxDrawdown(values)
		want := bruteForceMaxDrawdown(values)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("series %d: running-peak %f != brute force %f", i, got, want)
		}
	}
}

func TestMaxDrawdown_Empty(t *testing.T) {
	if got := MaxDrawdown(nil); got != 0 {
		t.Errorf("MaxDrawdown(nil) = %f, want 0", got)
	}
}

func tradeLog() []*domain.TradeRecord {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return []*domain.TradeRecord{
		{Date: d, Symbol: "NVDA", Action: domain.ActionBuy, Price: 100, Side: domain.SideLong},
		{Date: d.AddDate(0, 0, 5), Symbol: "NVDA", Action: domain.SellTakeProfit, Price: 170, Side: domain.SideLong},
		{Date: d.AddDate(0, 0, 6), Symbol: "TSLA", Action: domain.ActionBuy, Price: 200, Side: domain.SideLong},
		{Date: d.AddDate(0, 0, 9), Symbol: "TSLA", Action: domain.SellStopLoss, Price: 178, Side: domain.SideLong},
		{Date: d.AddDate(0, 0, 10), Symbol: "PLTR", Action: domain.ActionBuy, Price: 20, Side: domain.SideLong},
		// PLTR never exits: open round trip is ignored.
	}
}

func TestWinRate(t *testing.T) {
	rate, closed := WinRate(tradeLog())

	if closed != 2 {
		t.Errorf("closed round trips = %d, want 2", closed)
	}
	if math.Abs(rate-0.5) > 1e-12 {
		t.Errorf("win rate = %f, want 0.5", rate)
	}
}

func TestWinRate_NoClosedTrades(t *testing.T) {
	rate, closed := WinRate(nil)
	if rate != 0 || closed != 0 {
		t.Errorf("empty log: got rate=%f closed=%d", rate, closed)
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	capital := []domain.CapitalPoint{
		{Date: start, Equity: 10000},
		{Date: start.AddDate(0, 6, 0), Equity: 12000},
		{Date: start.AddDate(1, 0, 0), Equity: 9000},
		{Date: start.AddDate(2, 0, 0), Equity: 15000},
	}

	s := Summarize(capital, tradeLog())

	if s.InitialCapital != 10000 || s.FinalCapital != 15000 {
		t.Errorf("capital endpoints: got %f..%f", s.InitialCapital, s.FinalCapital)
	}
	if !s.CAGRKnown {
		t.Fatal("CAGR should be computable")
	}
	// Peak 12000 down to 9000.
	if math.Abs(s.MaxDrawdown-0.25) > 1e-12 {
		t.Errorf("max drawdown = %f, want 0.25", s.MaxDrawdown)
	}
	if s.TotalTrades != 5 || s.ClosedTrades != 2 {
		t.Errorf("trade counts: total=%d closed=%d", s.TotalTrades, s.ClosedTrades)
	}
}

func TestSummarize_NotComputableFlagged(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	capital := []domain.CapitalPoint{
		{Date: start, Equity: 10000},
		{Date: start, Equity: 11000}, // zero elapsed time
	}

	s := Summarize(capital, nil)
	if s.CAGRKnown {
		t.Error("CAGR must be flagged not computable when years <= 0")
	}
}
