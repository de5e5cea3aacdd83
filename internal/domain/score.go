package domain

import "time"

// CandidateScore holds the per-instrument metrics produced by the
// universe scoring step and the composite score derived from them.
type CandidateScore struct {
	Symbol           string
	CAGR             float64
	WinRate          float64
	Sharpe           float64 // mean/std of strategy returns, annualized
	MaxDrawdown      float64 // reported as a negative fraction of peak
	FundFlowStrength float64 // avg volume 60d / avg volume 252d
	Score            float64
}

// Allocation maps an instrument to its target portfolio weight.
// Weights are non-negative, individually capped, and sum to 1
// across the selected set.
type Allocation struct {
	Symbol string
	Weight float64
	Action string // hint for the order-placement collaborator, e.g. "buy"
}

// ScoreHistory is the prior cycle's symbol → score mapping, persisted
// between rebalance cycles solely to detect score deterioration.
type ScoreHistory map[string]float64

// ScorePoint is one persisted score observation for a symbol.
type ScorePoint struct {
	Symbol     string
	Score      float64
	RecordedAt time.Time
}
