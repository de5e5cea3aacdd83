package analytics

import (
	"time"

	"equity-quant-lab/internal/domain"
)

// RollingWindow is the default trailing window for rolling statistics,
// one trading year of daily bars.
const RollingWindow = 252

// RollingStats holds the rolling CAGR and win-rate series for one value
// series, advanced one bar at a time, plus their final and mean values.
type RollingStats struct {
	Dates   []time.Time
	CAGR    []float64
	WinRate []float64

	FinalCAGR    float64
	FinalWinRate float64
	AvgCAGR      float64
	AvgWinRate   float64
}

// Rolling computes trailing-window CAGR and win rate over a value
// series. Within each window, CAGR uses the first and last value and
// the elapsed calendar time; win rate is the fraction of up moves.
// Windows whose CAGR is not computable are skipped entirely, keeping
// the three output slices aligned.
func Rolling(dates []time.Time, values []float64, window int) *RollingStats {
	stats := &RollingStats{}
	if window < 2 || len(values) < window || len(dates) != len(values) {
		return stats
	}

	for i := 0; i+window <= len(values); i++ {
		lo, hi := i, i+window-1

		cagr, err := CAGR(values[lo], values[hi], Years(dates[lo], dates[hi]))
		if err != nil {
			continue
		}

		ups := 0
		for j := lo + 1; j <= hi; j++ {
			if values[j] > values[j-1] {
				ups++
			}
		}
		winRate := float64(ups) / float64(window-1)

		stats.Dates = append(stats.Dates, dates[hi])
		stats.CAGR = append(stats.CAGR, cagr)
		stats.WinRate = append(stats.WinRate, winRate)
	}

	n := len(stats.CAGR)
	if n == 0 {
		return stats
	}

	stats.FinalCAGR = stats.CAGR[n-1]
	stats.FinalWinRate = stats.WinRate[n-1]

	var sumC, sumW float64
	for i := 0; i < n; i++ {
		sumC += stats.CAGR[i]
		sumW += stats.WinRate[i]
	}
	stats.AvgCAGR = sumC / float64(n)
	stats.AvgWinRate = sumW / float64(n)

	return stats
}

// RollingFromBars runs Rolling over the close prices of a bar series.
func RollingFromBars(bars []domain.PriceBar, window int) *RollingStats {
	dates := make([]time.Time, len(bars))
	values := make([]float64, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
		values[i] = b.Close
	}
	return Rolling(dates, values, window)
}
