// Package universe screens instruments for strategy fitness, scores the
// survivors with a short-window proxy backtest, and turns the top
// candidates into a capped, normalized allocation.
package universe

import (
	"math"

	"equity-quant-lab/internal/domain"
)

// Screening thresholds.
const (
	minHistoryBars     = 200
	annualVolFloor     = 0.3
	liquidityFloor     = 1_000_000
	priceRangeFloor    = 0.4
	fundFlowGate       = 1.2
	fundFlowWindow     = 60
	yearWindow         = 252
	tradingDaysPerYear = 252
)

// ScreenConfig toggles optional screening gates.
type ScreenConfig struct {
	// RequireFundFlow additionally demands trailing-60d average volume
	// at least 1.2x the trailing-year average.
	RequireFundFlow bool
}

// Suitable reports whether an instrument passes the suitability filter:
// high volatility, an established uptrend in the 200-bar MA, enough
// liquidity, and a wide trailing-year price range.
func Suitable(bars []domain.PriceBar, cfg ScreenConfig) bool {
	if len(bars) < minHistoryBars {
		return false
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	// 1. Annualized volatility above the floor.
	rets := dailyReturns(closes)
	annVol := sampleStd(rets) * math.Sqrt(tradingDaysPerYear)
	if annVol <= annualVolFloor {
		return false
	}

	// 2. Positive least-squares slope on the MA200 tail.
	ma200 := rollingMean(closes, minHistoryBars)
	tail := tailValid(ma200, minHistoryBars)
	if len(tail) < 2 {
		return false
	}
	if slope(tail) <= 0 {
		return false
	}

	// 3. Trailing-year liquidity.
	avgVol := mean(tailOf(volumes, yearWindow))
	if avgVol <= liquidityFloor {
		return false
	}

	// 4. Trailing-year price range of at least 40%.
	year := tailOf(closes, yearWindow)
	lo, hi := minMax(year)
	if lo <= 0 || (hi-lo)/lo < priceRangeFloor {
		return false
	}

	// 5. Optional fund-flow gate.
	if cfg.RequireFundFlow {
		avg60 := mean(tailOf(volumes, fundFlowWindow))
		if avg60 < avgVol*fundFlowGate {
			return false
		}
	}

	return true
}

// FundFlowStrength is the trailing-60d to trailing-year average volume
// ratio. Returns 0 when the year average is zero.
func FundFlowStrength(bars []domain.PriceBar) float64 {
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	avg252 := mean(tailOf(volumes, yearWindow))
	if avg252 == 0 {
		return 0
	}
	return mean(tailOf(volumes, fundFlowWindow)) / avg252
}

// dailyReturns computes simple percent changes, dropping the first bar.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	return rets
}

// rollingMean returns the trailing mean over window; positions before
// the window is full are NaN.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// tailValid returns the non-NaN values among the last n entries.
func tailValid(values []float64, n int) []float64 {
	vals := tailOf(values, n)
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func tailOf(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(y []float64) float64 {
	n := float64(len(y))
	xMean := (n - 1) / 2
	yMean := mean(y)

	var num, den float64
	for i, v := range y {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 denominator standard deviation.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
