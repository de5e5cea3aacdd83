package indicator

import "equity-quant-lab/internal/domain"

// TrailingHigh returns the highest high over the window bars preceding
// index i, excluding bars[i] itself. Returns false when fewer than
// window bars precede i.
func TrailingHigh(bars []domain.PriceBar, i, window int) (float64, bool) {
	if i < window {
		return 0, false
	}
	high := bars[i-window].High
	for j := i - window + 1; j < i; j++ {
		if bars[j].High > high {
			high = bars[j].High
		}
	}
	return high, true
}

// TrailingLow returns the lowest low over the window bars preceding
// index i, excluding bars[i] itself. Returns false when fewer than
// window bars precede i.
func TrailingLow(bars []domain.PriceBar, i, window int) (float64, bool) {
	if i < window {
		return 0, false
	}
	low := bars[i-window].Low
	for j := i - window + 1; j < i; j++ {
		if bars[j].Low < low {
			low = bars[j].Low
		}
	}
	return low, true
}
