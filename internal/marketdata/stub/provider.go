// Package stub provides a deterministic in-process bar provider for
// tests and local runs without network access.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/marketdata"
)

// Provider generates synthetic daily bars. Series are deterministic per
// symbol: the same symbol and range always yield the same bars.
type Provider struct {
	// BasePrice is the starting close for every series.
	BasePrice float64
	// Drift is the mean daily return applied on top of the noise.
	Drift float64
	// Volatility scales the per-bar noise.
	Volatility float64
	// BaseVolume is the mean daily volume.
	BaseVolume float64
}

var _ marketdata.Provider = (*Provider)(nil)

// NewProvider returns a stub with mildly trending defaults.
func NewProvider() *Provider {
	return &Provider{
		BasePrice:  100.0,
		Drift:      0.0004,
		Volatility: 0.02,
		BaseVolume: 2_000_000,
	}
}

// GetBars generates one bar per calendar day in [start, end].
func (p *Provider) GetBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]domain.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, fmt.Errorf("marketdata: empty symbol")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, symbol)
	}

	rng := rand.New(rand.NewSource(symbolSeed(symbol)))

	var bars []domain.PriceBar
	price := p.BasePrice * (0.5 + rng.Float64())
	day := start
	for !day.After(end) {
		ret := p.Drift + p.Volatility*rng.NormFloat64()
		next := price * math.Exp(ret)

		high := math.Max(price, next) * (1 + 0.005*rng.Float64())
		low := math.Min(price, next) * (1 - 0.005*rng.Float64())
		vol := p.BaseVolume * (0.5 + rng.Float64())

		bars = append(bars, domain.PriceBar{
			Symbol: symbol,
			Date:   day,
			Open:   price,
			High:   high,
			Low:    low,
			Close:  next,
			Volume: vol,
		})

		price = next
		day = day.AddDate(0, 0, 1)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNoData, symbol)
	}
	return bars, nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}
