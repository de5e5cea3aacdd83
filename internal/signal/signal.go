// Package signal holds the stateless entry/exit decision functions for
// long and short positions. Every input is a single scalar for the
// current bar; the indicator pipeline guarantees that contract upstream.
package signal

import (
	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/regime"
)

// Entry thresholds.
const (
	longRSIFloor    = 51.0
	shortRSICeil    = 47.0
	volumeSurge     = 1.2 // entry requires volume > 1.2x average
	volumeDry       = 0.5 // take-profit confirms on volume < 0.5x average
	stopLossRatio   = -0.10
	takeProfitRatio = 0.65
	trailArmRatio   = 0.15 // trailing stop arms once profit reached 15%
	trailGiveback   = 0.10 // and fires after a 10pp giveback from the peak
)

// EntryInput carries the current bar's scalars for entry evaluation.
type EntryInput struct {
	Regime    regime.Regime
	Price     float64
	MACD      float64
	RSI       float64
	Volume    float64
	AvgVolume float64

	// PrevHigh and PrevLow are the trailing 20-bar extremes measured
	// over the prior bars, excluding the current one.
	PrevHigh float64
	PrevLow  float64
}

// ExitInput carries the scalars needed to evaluate an open position.
type ExitInput struct {
	EntryPrice float64
	Price      float64
	MaxProfit  float64 // running maximum profit ratio since entry
	Histogram  float64
	Volume     float64
	AvgVolume  float64
	Anchor     float64 // support for longs, resistance for shorts
}

// EvaluateBuy reports whether all long-entry conditions align on the
// current bar: bull regime, positive MACD, RSI above 51, a close above
// the 20-bar trailing high, and volume above 1.2x its average.
func EvaluateBuy(in EntryInput) bool {
	return in.Regime == regime.Bull &&
		in.MACD > 0 &&
		in.RSI > longRSIFloor &&
		in.Price > in.PrevHigh &&
		in.Volume > in.AvgVolume*volumeSurge
}

// EvaluateShortSell reports whether all short-entry conditions align:
// bear regime, negative MACD, RSI below 47, a close below the 20-bar
// trailing low, and volume above 1.2x its average.
func EvaluateShortSell(in EntryInput) bool {
	return in.Regime == regime.Bear &&
		in.MACD < 0 &&
		in.RSI < shortRSICeil &&
		in.Price < in.PrevLow &&
		in.Volume > in.AvgVolume*volumeSurge
}

// EvaluateSell decides whether to close a long position. Conditions are
// checked in precedence order and the first match wins:
// stop-loss, take-profit, trailing stop, anchor break. Otherwise HOLD.
func EvaluateSell(in ExitInput) string {
	profit := (in.Price - in.EntryPrice) / in.EntryPrice

	if profit <= stopLossRatio {
		return domain.SellStopLoss
	}
	if profit >= takeProfitRatio && (in.Histogram < 0 || in.Volume < in.AvgVolume*volumeDry) {
		return domain.SellTakeProfit
	}
	if profit >= trailArmRatio && in.MaxProfit-profit >= trailGiveback {
		return domain.SellTrailingStop
	}
	if in.Price < in.Anchor {
		return domain.SellFakeBreak
	}
	return domain.Hold
}

// EvaluateShortCover decides whether to close a short position. The
// profit ratio is (entry - price) / entry; the histogram and anchor
// conditions mirror the long exit.
func EvaluateShortCover(in ExitInput) string {
	profit := (in.EntryPrice - in.Price) / in.EntryPrice

	if profit <= stopLossRatio {
		return domain.CoverStopLoss
	}
	if profit >= takeProfitRatio && (in.Histogram > 0 || in.Volume < in.AvgVolume*volumeDry) {
		return domain.CoverTakeProfit
	}
	if profit >= trailArmRatio && in.MaxProfit-profit >= trailGiveback {
		return domain.CoverTrailingStop
	}
	if in.Price > in.Anchor {
		return domain.CoverFakeBreak
	}
	return domain.Hold
}
