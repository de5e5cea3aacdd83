package signal

import (
	"testing"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/regime"
)

func alignedBuyInput() EntryInput {
	return EntryInput{
		Regime:    regime.Bull,
		Price:     105,
		MACD:      1.5,
		RSI:       60,
		Volume:    2.4e6,
		AvgVolume: 1e6,
		PrevHigh:  100,
		PrevLow:   80,
	}
}

func TestEvaluateBuy_AllConditionsAligned(t *testing.T) {
	if !EvaluateBuy(alignedBuyInput()) {
		t.Fatal("expected buy signal when every condition aligns")
	}
}

func TestEvaluateBuy_EachConditionGates(t *testing.T) {
	mutations := map[string]func(*EntryInput){
		"bear regime":        func(in *EntryInput) { in.Regime = regime.Bear },
		"neutral regime":     func(in *EntryInput) { in.Regime = regime.Neutral },
		"negative macd":      func(in *EntryInput) { in.MACD = -0.1 },
		"rsi at threshold":   func(in *EntryInput) { in.RSI = 51 },
		"no breakout":        func(in *EntryInput) { in.Price = 99 },
		"insufficient surge": func(in *EntryInput) { in.Volume = 1.2e6 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := alignedBuyInput()
			mutate(&in)
			if EvaluateBuy(in) {
				t.Errorf("expected no buy signal with %s", name)
			}
		})
	}
}

func TestEvaluateShortSell(t *testing.T) {
	in := EntryInput{
		Regime:    regime.Bear,
		Price:     75,
		MACD:      -0.8,
		RSI:       40,
		Volume:    1.5e6,
		AvgVolume: 1e6,
		PrevHigh:  100,
		PrevLow:   80,
	}
	if !EvaluateShortSell(in) {
		t.Fatal("expected short signal when every condition aligns")
	}

	in.RSI = 47
	if EvaluateShortSell(in) {
		t.Error("expected no short signal with RSI at threshold")
	}
}

func TestEvaluateSell_StopLossRegardlessOfIndicators(t *testing.T) {
	// Entry 100, current 89 (-11%): stop-loss must win even with a
	// strongly positive histogram, huge max profit and healthy volume.
	in := ExitInput{
		EntryPrice: 100,
		Price:      89,
		MaxProfit:  0.50,
		Histogram:  5,
		Volume:     3e6,
		AvgVolume:  1e6,
		Anchor:     0,
	}

	if got := EvaluateSell(in); got != domain.SellStopLoss {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.SellStopLoss)
	}
}

func TestEvaluateSell_TakeProfit(t *testing.T) {
	in := ExitInput{
		EntryPrice: 100,
		Price:      170, // +70%
		MaxProfit:  0.70,
		Histogram:  -0.2,
		Volume:     1e6,
		AvgVolume:  1e6,
		Anchor:     0,
	}
	if got := EvaluateSell(in); got != domain.SellTakeProfit {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.SellTakeProfit)
	}

	// Volume dry-up triggers the same exit even with a positive histogram.
	in.Histogram = 0.2
	in.Volume = 0.4e6
	if got := EvaluateSell(in); got != domain.SellTakeProfit {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.SellTakeProfit)
	}

	// Neither confirmation: hold through the gain.
	in.Volume = 1e6
	if got := EvaluateSell(in); got != domain.Hold {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.Hold)
	}
}

func TestEvaluateSell_TrailingStop(t *testing.T) {
	// Armed at +15%, peak was +30%, now +18%: giveback 12pp >= 10pp.
	in := ExitInput{
		EntryPrice: 100,
		Price:      118,
		MaxProfit:  0.30,
		Histogram:  1,
		Volume:     2e6,
		AvgVolume:  1e6,
		Anchor:     0,
	}
	if got := EvaluateSell(in); got != domain.SellTrailingStop {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.SellTrailingStop)
	}

	// Giveback below 10pp holds.
	in.MaxProfit = 0.25
	if got := EvaluateSell(in); got != domain.Hold {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.Hold)
	}
}

func TestEvaluateSell_AnchorBreak(t *testing.T) {
	in := ExitInput{
		EntryPrice: 100,
		Price:      104,
		MaxProfit:  0.05,
		Histogram:  1,
		Volume:     2e6,
		AvgVolume:  1e6,
		Anchor:     105,
	}
	if got := EvaluateSell(in); got != domain.SellFakeBreak {
		t.Errorf("EvaluateSell = %s, want %s", got, domain.SellFakeBreak)
	}
}

func TestEvaluateShortCover_Symmetry(t *testing.T) {
	// Entry 100, price 111: short is down 11%, stop-loss fires.
	in := ExitInput{
		EntryPrice: 100,
		Price:      111,
		MaxProfit:  0.20,
		Histogram:  -3,
		Volume:     2e6,
		AvgVolume:  1e6,
		Anchor:     200,
	}
	if got := EvaluateShortCover(in); got != domain.CoverStopLoss {
		t.Errorf("EvaluateShortCover = %s, want %s", got, domain.CoverStopLoss)
	}

	// Short take-profit confirms on a positive histogram flip.
	in = ExitInput{
		EntryPrice: 100,
		Price:      30, // +70% for a short
		MaxProfit:  0.70,
		Histogram:  0.5,
		Volume:     1e6,
		AvgVolume:  1e6,
		Anchor:     200,
	}
	if got := EvaluateShortCover(in); got != domain.CoverTakeProfit {
		t.Errorf("EvaluateShortCover = %s, want %s", got, domain.CoverTakeProfit)
	}

	// Resistance breached upward.
	in = ExitInput{
		EntryPrice: 100,
		Price:      96,
		MaxProfit:  0.06,
		Histogram:  -1,
		Volume:     1e6,
		AvgVolume:  1e6,
		Anchor:     95,
	}
	if got := EvaluateShortCover(in); got != domain.CoverFakeBreak {
		t.Errorf("EvaluateShortCover = %s, want %s", got, domain.CoverFakeBreak)
	}
}
