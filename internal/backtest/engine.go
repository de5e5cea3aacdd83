// Package backtest drives the per-bar strategy loop over historical
// price series: indicators, regime, signals, and the position ledger,
// emitting a trade log and a capital-over-time series per run.
package backtest

import (
	"errors"
	"fmt"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/indicator"
	"equity-quant-lab/internal/ledger"
	"equity-quant-lab/internal/regime"
	"equity-quant-lab/internal/signal"
)

// Engine defaults.
const (
	// DefaultShockThreshold flags a single-bar equity drop of 8% or
	// worse as a shock event.
	DefaultShockThreshold = -0.08

	// breakoutWindow is the trailing-extreme window used for entry
	// breakout checks and exit anchors.
	breakoutWindow = 20
)

// ErrInsufficientBars is returned when a symbol has fewer bars than the
// indicator pipeline needs. Callers skip the symbol, matching the
// treatment of an empty provider result.
var ErrInsufficientBars = errors.New("backtest: insufficient bars for indicator warmup")

// Event identifies something the engine wants surfaced to humans.
type Event struct {
	Kind   EventKind
	Trade  *domain.TradeRecord // set for EventTrade
	Symbol string
	Detail string
}

// EventKind discriminates engine events.
type EventKind int

// Engine event kinds.
const (
	// EventTrade is an entry or exit.
	EventTrade EventKind = iota
	// EventStopLoss is an exit specifically caused by the stop-loss
	// rule; it is reported in addition to the plain trade event.
	EventStopLoss
	// EventShock is a single-bar equity drop beyond the threshold.
	EventShock
)

// SymbolResult is the output of one symbol's strategy run.
type SymbolResult struct {
	Symbol  string
	Capital []domain.CapitalPoint
	Trades  []*domain.TradeRecord
	Events  []Event

	// FinalEquity is cash plus mark-to-market of any position still
	// open at the last bar. Open positions are not force-closed.
	FinalEquity float64
}

// Engine runs the strategy over one symbol's bars at a time.
type Engine struct {
	shockThreshold float64
}

// NewEngine creates an engine with the default shock threshold.
func NewEngine() *Engine {
	return &Engine{shockThreshold: DefaultShockThreshold}
}

// SetShockThreshold overrides the single-bar drop that counts as a
// shock. The value is a negative fraction, e.g. -0.08.
func (e *Engine) SetShockThreshold(t float64) { e.shockThreshold = t }

// RunSymbol executes the strategy over one symbol's bar series with the
// given cash slot. Bars must be ordered ascending by date. The first
// tradable bar is the one right after indicator warmup.
func (e *Engine) RunSymbol(seriesID, symbol string, bars []domain.PriceBar, cash float64) (*SymbolResult, error) {
	snaps, err := indicator.Compute(bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientBars, err)
	}

	led := ledger.New(symbol, cash)
	result := &SymbolResult{Symbol: symbol}

	prevEquity := cash
	for i := indicator.Warmup; i < len(bars); i++ {
		bar := bars[i]
		snap := snaps[i-indicator.Warmup]
		reg := regime.Classify(snap.MA50, snap.MA150)

		if pos := led.Position(); pos != nil {
			if _, markErr := led.Mark(bar.Close); markErr != nil {
				return nil, fmt.Errorf("mark %s: %w", symbol, markErr)
			}

			exit := signal.ExitInput{
				EntryPrice: pos.EntryPrice,
				Price:      bar.Close,
				MaxProfit:  pos.MaxProfit,
				Histogram:  snap.Histogram,
				Volume:     bar.Volume,
				AvgVolume:  snap.VolumeMA,
				Anchor:     pos.Anchor,
			}
			reason := domain.Hold
			if pos.Side == domain.SideLong {
				reason = signal.EvaluateSell(exit)
			} else {
				reason = signal.EvaluateShortCover(exit)
			}
			if reason != domain.Hold {
				rec, closeErr := led.Close(bar.Date, bar.Close, reason)
				if closeErr != nil {
					return nil, fmt.Errorf("close %s: %w", symbol, closeErr)
				}
				result.Events = append(result.Events, Event{Kind: EventTrade, Trade: rec, Symbol: symbol})
				if reason == domain.SellStopLoss || reason == domain.CoverStopLoss {
					result.Events = append(result.Events, Event{Kind: EventStopLoss, Trade: rec, Symbol: symbol})
				}
			}
		}

		// An exit frees the slot for the rest of this bar, so a fresh
		// entry signal on the same close is taken immediately.
		if led.Position() == nil {
			entry := signal.EntryInput{
				Regime:    reg,
				Price:     bar.Close,
				MACD:      snap.MACD,
				RSI:       snap.RSI,
				Volume:    bar.Volume,
				AvgVolume: snap.VolumeMA,
			}
			prevHigh, okHigh := indicator.TrailingHigh(bars, i, breakoutWindow)
			prevLow, okLow := indicator.TrailingLow(bars, i, breakoutWindow)
			if okHigh && okLow {
				entry.PrevHigh = prevHigh
				entry.PrevLow = prevLow

				var rec *domain.TradeRecord
				var openErr error
				switch {
				case signal.EvaluateBuy(entry):
					rec, openErr = led.OpenLong(bar.Date, bar.Close, prevHigh)
				case signal.EvaluateShortSell(entry):
					rec, openErr = led.OpenShort(bar.Date, bar.Close, prevLow)
				}
				if openErr != nil && !errors.Is(openErr, ledger.ErrZeroShares) {
					return nil, fmt.Errorf("open %s: %w", symbol, openErr)
				}
				if rec != nil {
					result.Events = append(result.Events, Event{Kind: EventTrade, Trade: rec, Symbol: symbol})
				}
			}
		}

		equity := led.Equity(bar.Close)
		result.Capital = append(result.Capital, domain.CapitalPoint{
			SeriesID: seriesID,
			Date:     bar.Date,
			Equity:   equity,
		})
		if prevEquity > 0 {
			change := (equity - prevEquity) / prevEquity
			if change <= e.shockThreshold {
				result.Events = append(result.Events, Event{
					Kind:   EventShock,
					Symbol: symbol,
					Detail: fmt.Sprintf("equity fell %.1f%% on %s", change*100, bar.Date.Format("2006-01-02")),
				})
			}
		}
		prevEquity = equity
	}

	result.Trades = led.Trades()
	result.FinalEquity = prevEquity
	return result, nil
}
