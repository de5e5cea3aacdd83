package domain

import "time"

// CapitalPoint is one sample of the total-equity series emitted per time step.
type CapitalPoint struct {
	SeriesID string // identifies the run the sample belongs to
	Date     time.Time
	Equity   float64 // cash + mark-to-market of any open position
}

// PerformanceSummary holds run-level results for the dashboard read path.
// CAGRKnown / other *Known flags distinguish a genuine zero from a value
// that was not computable (non-positive capital or elapsed time).
type PerformanceSummary struct {
	InitialCapital float64
	FinalCapital   float64
	CAGR           float64
	CAGRKnown      bool
	WinRate        float64
	MaxDrawdown    float64
	TotalTrades    int
	ClosedTrades   int
}
