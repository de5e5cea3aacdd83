// Package analytics computes performance statistics over capital series
// and trade logs: CAGR, maximum drawdown, win rate, and their rolling
// variants.
package analytics

import (
	"errors"
	"math"
	"time"

	"equity-quant-lab/internal/domain"
)

// ErrNotComputable is returned when a statistic's preconditions are not
// met (non-positive capital, non-positive elapsed time). Callers report
// the value as "not computable" and continue; it is never fatal.
var ErrNotComputable = errors.New("analytics: not computable")

// daysPerYear matches the calendar-day convention used for elapsed time.
const daysPerYear = 365.25

// CAGR computes the compound annual growth rate from start to end
// capital over the elapsed years: (end/start)^(1/years) - 1.
// Returns ErrNotComputable when start <= 0, end <= 0 or years <= 0.
func CAGR(start, end, years float64) (float64, error) {
	if start <= 0 || end <= 0 || years <= 0 {
		return 0, ErrNotComputable
	}
	return math.Pow(end/start, 1/years) - 1, nil
}

// Years returns the elapsed time between two dates in calendar years.
func Years(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / daysPerYear
}

// MaxDrawdown computes the maximum decline from the running peak of a
// capital series, as a fraction of that peak. An empty or never-declining
// series yields zero.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// WinRate computes the fraction of closed round trips whose exit price
// exceeded the paired entry price. Trades are paired per symbol in log
// order: each entry (BUY / SHORT_SELL) is matched with the next exit for
// that symbol. Open positions at the end of the log are ignored.
// Returns the win rate and the number of closed round trips.
func WinRate(trades []*domain.TradeRecord) (float64, int) {
	type openEntry struct {
		price float64
	}

	open := make(map[string]*openEntry)
	wins, closed := 0, 0

	for _, tr := range trades {
		switch tr.Action {
		case domain.ActionBuy, domain.ActionShortSell:
			open[tr.Symbol] = &openEntry{price: tr.Price}
		default:
			entry, ok := open[tr.Symbol]
			if !ok {
				continue
			}
			closed++
			if tr.Price > entry.price {
				wins++
			}
			delete(open, tr.Symbol)
		}
	}

	if closed == 0 {
		return 0, 0
	}
	return float64(wins) / float64(closed), closed
}

// Summarize produces the run-level performance summary consumed by the
// dashboard read path. Statistics whose preconditions fail are flagged
// rather than reported as zero.
func Summarize(capital []domain.CapitalPoint, trades []*domain.TradeRecord) domain.PerformanceSummary {
	var s domain.PerformanceSummary
	s.TotalTrades = len(trades)

	if len(capital) > 0 {
		first, last := capital[0], capital[len(capital)-1]
		s.InitialCapital = first.Equity
		s.FinalCapital = last.Equity

		values := make([]float64, len(capital))
		for i, p := range capital {
			values[i] = p.Equity
		}
		s.MaxDrawdown = MaxDrawdown(values)

		cagr, err := CAGR(first.Equity, last.Equity, Years(first.Date, last.Date))
		if err == nil {
			s.CAGR = cagr
			s.CAGRKnown = true
		}
	}

	s.WinRate, s.ClosedTrades = WinRate(trades)
	return s
}
