// Package marketdata retrieves price bars and streaming quotes from an
// external provider. Provider failures are per-instrument: callers skip
// the instrument for the cycle and continue the run.
package marketdata

import (
	"context"
	"errors"
	"time"

	"equity-quant-lab/internal/domain"
)

// ErrNoData is returned when the provider has no bars for a symbol in
// the requested range. Callers treat it as "skip this instrument for
// this cycle", never as a fatal error for the whole run.
var ErrNoData = errors.New("marketdata: no data for symbol")

// Provider supplies ordered bar sequences per (symbol, range, interval).
type Provider interface {
	// GetBars returns bars for the symbol within [start, end], ordered
	// ascending by date. Returns ErrNoData when the result is empty.
	GetBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]domain.PriceBar, error)
}

// Quote is one streamed price update for a symbol.
type Quote struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}
