package domain

import "time"

// PriceBar represents one OHLCV bar for an instrument.
// Bars are immutable once ingested and ordered ascending by date,
// one per trading session (or per minute for intraday feeds).
type PriceBar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bar interval identifiers understood by market data providers.
const (
	IntervalDaily  = "1d"
	IntervalMinute = "1m"
)
