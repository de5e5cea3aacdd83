// Package indicator derives per-bar technical indicators from a raw
// price series. It is the single scalar-reduction boundary of the
// system: every value it emits is one float per bar, so no downstream
// component ever has to guess whether an input is scalar or vector.
package indicator

import (
	"fmt"

	"equity-quant-lab/internal/domain"
)

// Window sizes for the derived indicators.
const (
	MAShortWindow  = 50
	MALongWindow   = 150
	VolumeWindow   = 20
	MACDFastSpan   = 12
	MACDSlowSpan   = 26
	MACDSignalSpan = 9
	RSIWindow      = 14

	// Warmup is the number of leading bars withheld from the output so
	// that every emitted snapshot has all trailing windows full. It is
	// driven by the longest moving-average window.
	Warmup = MALongWindow
)

// MinBars is the minimum input length Compute accepts: the longest
// window plus one usable bar.
const MinBars = Warmup + 1

// Compute derives indicator snapshots for one instrument's bar series.
// The returned slice aligns with bars[Warmup:]: snapshot i describes
// bars[Warmup+i]. Bars preceding a full window are dropped rather than
// partially filled, so the output is always shorter than the input.
//
// Bars must be ordered ascending by date. Each instrument's pipeline
// run is independent; no smoothing crosses instrument boundaries.
func Compute(bars []domain.PriceBar) ([]domain.IndicatorSnapshot, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("indicator: need at least %d bars, got %d", MinBars, len(bars))
	}

	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	ma50 := sma(closes, MAShortWindow)
	ma150 := sma(closes, MALongWindow)
	volMA := sma(volumes, VolumeWindow)

	fast := ema(closes, MACDFastSpan)
	slow := ema(closes, MACDSlowSpan)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := ema(macd, MACDSignalSpan)

	rsi := rsi14(closes)

	out := make([]domain.IndicatorSnapshot, 0, n-Warmup)
	for i := Warmup; i < n; i++ {
		out = append(out, domain.IndicatorSnapshot{
			MA50:      ma50[i],
			MA150:     ma150[i],
			VolumeMA:  volMA[i],
			MACD:      macd[i],
			Signal:    signal[i],
			Histogram: macd[i] - signal[i],
			RSI:       rsi[i],
		})
	}
	return out, nil
}

// sma computes the simple moving average over the trailing window.
// Entries before the window is full are left at zero; Compute never
// emits them because Warmup covers the longest window.
func sma(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// ema computes a recursive exponential moving average with the
// conventional smoothing factor 2/(span+1), seeded with the first value.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi14 computes the 14-bar RSI from rolling-mean average gain and loss:
// RSI = 100 - 100/(1+RS) with RS = avgGain/avgLoss.
//
// Divide-by-zero policy: when the average loss is zero and the average
// gain is positive, RS is infinite and RSI saturates at 100. When both
// averages are zero (a flat window) RSI is reported as 50, the neutral
// midpoint, rather than an undefined value.
func rsi14(closes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := sma(gains, RSIWindow)
	avgLoss := sma(losses, RSIWindow)

	for i := RSIWindow; i < n; i++ {
		switch {
		case avgLoss[i] > 0:
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		case avgGain[i] > 0:
			out[i] = 100
		default:
			out[i] = 50
		}
	}
	return out
}
