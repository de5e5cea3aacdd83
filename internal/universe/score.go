package universe

import (
	"errors"
	"math"

	"equity-quant-lab/internal/domain"
)

// Scoring parameters.
const (
	// ScoreWindowDays is the trailing calendar window fed to the proxy
	// backtest.
	ScoreWindowDays = 180
	// MinScoringBars is the minimum bar count inside the window.
	MinScoringBars = 60

	proxyMAShort = 10
	proxyMALong  = 15

	daysPerYear = 365.25
)

// ErrInsufficientHistory is returned when a candidate has too few bars
// inside the scoring window.
var ErrInsufficientHistory = errors.New("universe: insufficient history for scoring")

// ScoreWeights are the composite-score coefficients. Drawdown is a
// penalty applied to the absolute max drawdown.
type ScoreWeights struct {
	CAGR     float64
	WinRate  float64
	Sharpe   float64
	Drawdown float64
	FundFlow float64
}

// PlainWeights is the preset without the fund-flow term.
var PlainWeights = ScoreWeights{CAGR: 0.4, WinRate: 0.2, Sharpe: 0.3, Drawdown: 0.1}

// FundFlowWeights is the preset that rewards recent volume expansion.
var FundFlowWeights = ScoreWeights{CAGR: 0.3, WinRate: 0.15, Sharpe: 0.2, Drawdown: 0.1, FundFlow: 0.25}

// Composite collapses candidate metrics into one score.
func (w ScoreWeights) Composite(c domain.CandidateScore) float64 {
	return c.CAGR*w.CAGR +
		c.WinRate*w.WinRate +
		c.Sharpe*w.Sharpe -
		math.Abs(c.MaxDrawdown)*w.Drawdown +
		c.FundFlowStrength*w.FundFlow
}

// ScoreCandidate runs the MA(10,15) crossover proxy backtest over the
// given bars and returns the candidate's metrics and composite score.
// The signal is shifted one bar so a cross acts on the next session.
func ScoreCandidate(symbol string, bars []domain.PriceBar, w ScoreWeights) (domain.CandidateScore, error) {
	if len(bars) < MinScoringBars {
		return domain.CandidateScore{}, ErrInsufficientHistory
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	maShort := rollingMean(closes, proxyMAShort)
	maLong := rollingMean(closes, proxyMALong)

	// strategy return per bar: yesterday's signal times today's return
	stratRet := make([]float64, len(bars))
	cum := make([]float64, len(bars))
	level := 1.0
	for i := range bars {
		var ret float64
		if i > 0 && closes[i-1] != 0 {
			ret = closes[i]/closes[i-1] - 1
		}
		signal := 0.0
		if i > 0 && !math.IsNaN(maShort[i-1]) && !math.IsNaN(maLong[i-1]) && maShort[i-1] > maLong[i-1] {
			signal = 1.0
		}
		stratRet[i] = ret * signal
		level *= 1 + stratRet[i]
		cum[i] = level
	}

	years := bars[len(bars)-1].Date.Sub(bars[0].Date).Hours() / 24 / daysPerYear
	cagr := 0.0
	if years > 0 {
		cagr = math.Pow(cum[len(cum)-1], 1/years) - 1
	}

	var wins, active int
	for _, r := range stratRet {
		if r > 0 {
			wins++
		}
		if r != 0 {
			active++
		}
	}
	winRate := 0.0
	if active > 0 {
		winRate = float64(wins) / float64(active)
	}

	maxDrawdown := 0.0
	peak := cum[0]
	for _, v := range cum {
		if v > peak {
			peak = v
		}
		dd := (v - peak) / peak
		if dd < maxDrawdown {
			maxDrawdown = dd
		}
	}

	sharpe := 0.0
	if std := sampleStd(stratRet); std > 0 {
		sharpe = mean(stratRet) / std * math.Sqrt(tradingDaysPerYear)
	}

	c := domain.CandidateScore{
		Symbol:           symbol,
		CAGR:             cagr,
		WinRate:          winRate,
		Sharpe:           sharpe,
		MaxDrawdown:      maxDrawdown,
		FundFlowStrength: FundFlowStrength(bars),
	}
	c.Score = w.Composite(c)
	return c, nil
}
