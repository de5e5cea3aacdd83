package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"equity-quant-lab/internal/analytics"
	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/notify"
	"equity-quant-lab/internal/observability"
	"equity-quant-lab/internal/storage"
)

// Runner defaults.
const (
	// DefaultInitialCapital is the total capital for a run.
	DefaultInitialCapital = 1_000_000
	// DefaultSlotFraction is the share of total capital earmarked per
	// symbol slot.
	DefaultSlotFraction = 0.2
)

// RunConfig controls one backtest run.
type RunConfig struct {
	RunID          string
	Symbols        []string
	Start, End     time.Time
	InitialCapital float64
	SlotFraction   float64
}

// RunResult aggregates per-symbol outcomes plus the portfolio summary.
type RunResult struct {
	RunID     string
	Results   []*SymbolResult
	Skipped   []string
	Faulted   []string
	Portfolio domain.PerformanceSummary

	// Summaries holds the per-symbol performance, keyed by symbol.
	Summaries map[string]domain.PerformanceSummary
}

// Runner fetches bars, runs the engine per symbol, persists the trade
// log and capital series, and surfaces events through the notifier.
// Symbols are processed sequentially; one symbol's failure never stops
// the run.
type Runner struct {
	provider marketdata.Provider
	engine   *Engine
	trades   storage.TradeLogStore
	capital  storage.CapitalSeriesStore
	notifier notify.Notifier
	logger   *log.Logger
}

// NewRunner wires a runner. Stores may be nil to skip persistence.
func NewRunner(provider marketdata.Provider, engine *Engine, trades storage.TradeLogStore, capital storage.CapitalSeriesStore, notifier notify.Notifier, logger *log.Logger) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Runner{
		provider: provider,
		engine:   engine,
		trades:   trades,
		capital:  capital,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes the strategy over every configured symbol and returns
// the aggregated result. Per-symbol faults are logged, notified, and
// recovered; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.SlotFraction <= 0 || cfg.SlotFraction > 1 {
		cfg.SlotFraction = DefaultSlotFraction
	}
	if cfg.RunID == "" {
		cfg.RunID = fmt.Sprintf("run-%d", time.Now().Unix())
	}
	slot := cfg.InitialCapital * cfg.SlotFraction

	started := time.Now()
	r.logger.Printf("[backtest] run %s: %d symbols, %s to %s",
		cfg.RunID, len(cfg.Symbols), cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
	r.notify(ctx, func(ctx context.Context) error {
		return r.notifier.Summary(ctx, fmt.Sprintf("backtest %s started: %d symbols", cfg.RunID, len(cfg.Symbols)))
	})

	result := &RunResult{
		RunID:     cfg.RunID,
		Summaries: make(map[string]domain.PerformanceSummary),
	}

	for _, symbol := range cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sym, err := r.runOne(ctx, cfg, symbol, slot)
		if err != nil {
			switch {
			case errors.Is(err, marketdata.ErrNoData), errors.Is(err, ErrInsufficientBars):
				r.logger.Printf("[backtest] skipping %s: %v", symbol, err)
				observability.RecordSymbolSkipped("no_data")
				result.Skipped = append(result.Skipped, symbol)
			default:
				r.logger.Printf("[backtest] symbol %s faulted: %v", symbol, err)
				observability.RecordStrategyFault()
				result.Faulted = append(result.Faulted, symbol)
				r.notify(ctx, func(ctx context.Context) error {
					return r.notifier.Alert(ctx, fmt.Sprintf("backtest %s: %s faulted: %v", cfg.RunID, symbol, err))
				})
			}
			continue
		}

		observability.RecordSymbolProcessed()
		result.Results = append(result.Results, sym)
		result.Summaries[symbol] = analytics.Summarize(sym.Capital, sym.Trades)
	}

	result.Portfolio = r.portfolioSummary(cfg, slot, result)

	r.notify(ctx, func(ctx context.Context) error {
		return r.notifier.Summary(ctx, fmt.Sprintf(
			"backtest %s complete: %d symbols run, %d skipped, %d faulted, final capital %.2f",
			cfg.RunID, len(result.Results), len(result.Skipped), len(result.Faulted), result.Portfolio.FinalCapital))
	})

	status := "success"
	if len(result.Faulted) > 0 {
		status = "partial"
	}
	observability.RecordRun(status, time.Since(started).Seconds())
	r.logger.Printf("[backtest] run %s finished in %s", cfg.RunID, time.Since(started).Round(time.Millisecond))
	return result, nil
}

// runOne fetches, runs, persists, and notifies for a single symbol.
func (r *Runner) runOne(ctx context.Context, cfg RunConfig, symbol string, slot float64) (*SymbolResult, error) {
	bars, err := r.provider.GetBars(ctx, symbol, cfg.Start, cfg.End, domain.IntervalDaily)
	if err != nil {
		return nil, err
	}

	seriesID := cfg.RunID + ":" + symbol
	sym, err := r.engine.RunSymbol(seriesID, symbol, bars, slot)
	if err != nil {
		return nil, err
	}

	for _, ev := range sym.Events {
		switch ev.Kind {
		case EventTrade:
			observability.RecordTrade(ev.Trade.Action)
			r.notify(ctx, func(ctx context.Context) error {
				return r.notifier.Trade(ctx, ev.Trade)
			})
		case EventStopLoss:
			r.notify(ctx, func(ctx context.Context) error {
				return r.notifier.Alert(ctx, fmt.Sprintf("stop loss on %s at %.2f", ev.Symbol, ev.Trade.Price))
			})
		case EventShock:
			observability.RecordShock()
			r.notify(ctx, func(ctx context.Context) error {
				return r.notifier.Alert(ctx, fmt.Sprintf("%s: %s", ev.Symbol, ev.Detail))
			})
		}
	}

	// Duplicate keys mean a re-run over the same run ID and bars; the
	// stored rows are already correct.
	if r.trades != nil && len(sym.Trades) > 0 {
		if err := r.trades.InsertBulk(ctx, sym.Trades); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("persist trades for %s: %w", symbol, err)
		}
	}
	if r.capital != nil && len(sym.Capital) > 0 {
		points := make([]*domain.CapitalPoint, len(sym.Capital))
		for i := range sym.Capital {
			points[i] = &sym.Capital[i]
		}
		if err := r.capital.InsertBulk(ctx, points); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("persist capital for %s: %w", symbol, err)
		}
	}

	return sym, nil
}

// notify runs one delivery attempt and only logs on failure.
func (r *Runner) notify(ctx context.Context, send func(context.Context) error) {
	if err := send(ctx); err != nil {
		observability.RecordNotifyFailure()
		r.logger.Printf("[backtest] notify failed: %v", err)
	}
}

// portfolioSummary aggregates per-symbol equity curves into run-level
// performance. Capital never allocated to a slot is carried flat.
func (r *Runner) portfolioSummary(cfg RunConfig, slot float64, result *RunResult) domain.PerformanceSummary {
	unallocated := cfg.InitialCapital - slot*float64(len(result.Results))

	var trades []*domain.TradeRecord
	for _, sym := range result.Results {
		trades = append(trades, sym.Trades...)
	}

	merged := mergePortfolioEquity(result.Results, slot, unallocated)
	if len(merged) == 0 {
		return domain.PerformanceSummary{
			InitialCapital: cfg.InitialCapital,
			FinalCapital:   cfg.InitialCapital,
		}
	}

	summary := analytics.Summarize(merged, trades)
	summary.InitialCapital = cfg.InitialCapital
	return summary
}

// mergePortfolioEquity sums per-symbol equity over the union of bar
// dates, carrying each symbol's last known equity forward (and its slot
// cash before its first bar).
func mergePortfolioEquity(results []*SymbolResult, slot, unallocated float64) []domain.CapitalPoint {
	dateSet := make(map[int64]time.Time)
	for _, sym := range results {
		for _, p := range sym.Capital {
			dateSet[p.Date.Unix()] = p.Date
		}
	}
	if len(dateSet) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]domain.CapitalPoint, len(dates))
	cursor := make([]int, len(results))
	last := make([]float64, len(results))
	for i := range last {
		last[i] = slot
	}

	for di, d := range dates {
		total := unallocated
		for si, sym := range results {
			for cursor[si] < len(sym.Capital) && !sym.Capital[cursor[si]].Date.After(d) {
				last[si] = sym.Capital[cursor[si]].Equity
				cursor[si]++
			}
			total += last[si]
		}
		out[di] = domain.CapitalPoint{SeriesID: "portfolio", Date: d, Equity: total}
	}
	return out
}
