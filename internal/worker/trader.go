package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/idhash"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/notify"
	"equity-quant-lab/internal/observability"
	"equity-quant-lab/internal/storage"
)

// Trader defaults.
const (
	// TraderInterval is the poll-cycle period.
	TraderInterval = time.Minute
	// TraderTopN is how many instruments the live portfolio holds.
	TraderTopN = 5
	// TraderInitialCapital is the virtual starting cash.
	TraderInitialCapital = 100_000
	// traderSummaryHour is the UTC hour of the daily digest.
	traderSummaryHour = 6

	quickScoreLookback = 2 // years of daily bars for the quick score
)

// ActionSellRotation marks a live exit taken because the symbol dropped
// out of the top-N, not because a strategy exit fired.
const ActionSellRotation = "SELL_ROTATION"

// holding is one live position in the virtual portfolio.
type holding struct {
	Shares     int
	EntryPrice float64
}

// Trader is the near-real-time virtual trading loop: it refreshes a
// quick-scored top-N out of the selection pool, rebalances the virtual
// portfolio into equal slots at streamed prices, records the capital
// trend, and posts a daily digest.
type Trader struct {
	provider marketdata.Provider
	history  storage.ScoreHistoryStore
	trades   storage.TradeLogStore
	capital  storage.CapitalSeriesStore
	notifier notify.Notifier
	logger   *log.Logger

	symbols  []string
	topN     int
	interval time.Duration
	seriesID string
	now      func() time.Time

	mu        sync.Mutex
	prices    map[string]float64
	portfolio map[string]holding
	cash      float64

	lastSummaryDay int
}

// NewTrader wires a trader. trades and capital stores may be nil to
// skip persistence.
func NewTrader(provider marketdata.Provider, history storage.ScoreHistoryStore, trades storage.TradeLogStore, capital storage.CapitalSeriesStore, notifier notify.Notifier, symbols []string, logger *log.Logger) *Trader {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Trader{
		provider:  provider,
		history:   history,
		trades:    trades,
		capital:   capital,
		notifier:  notifier,
		logger:    logger,
		symbols:   symbols,
		topN:      TraderTopN,
		interval:  TraderInterval,
		seriesID:  "live",
		now:       time.Now,
		prices:    make(map[string]float64),
		portfolio: make(map[string]holding),
		cash:      TraderInitialCapital,
	}
}

// SetInterval overrides the poll period.
func (t *Trader) SetInterval(d time.Duration) { t.interval = d }

// SetTopN overrides the live portfolio size.
func (t *Trader) SetTopN(n int) { t.topN = n }

// SetCapital overrides the starting cash.
func (t *Trader) SetCapital(cash float64) { t.cash = cash }

// SetSeriesID overrides the capital-trend series identifier.
func (t *Trader) SetSeriesID(id string) { t.seriesID = id }

// SetClock overrides the clock.
func (t *Trader) SetClock(now func() time.Time) { t.now = now }

// ApplyQuote records the latest streamed price for a symbol.
func (t *Trader) ApplyQuote(q marketdata.Quote) {
	t.mu.Lock()
	t.prices[q.Symbol] = q.Price
	t.mu.Unlock()
	observability.RecordQuote()
}

// ConsumeQuotes drains a quote channel into the price map until the
// channel closes or the context is cancelled.
func (t *Trader) ConsumeQuotes(ctx context.Context, quotes <-chan marketdata.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quotes:
			if !ok {
				return
			}
			t.ApplyQuote(q)
		}
	}
}

// Holdings returns a copy of the current portfolio symbols.
func (t *Trader) Holdings() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.portfolio))
	for s := range t.portfolio {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Run loops until the context is cancelled. A faulted cycle is logged,
// notified, and retried on the next tick.
func (t *Trader) Run(ctx context.Context) error {
	t.logger.Printf("[trader] starting, interval %s, top %d of %d symbols", t.interval, t.topN, len(t.symbols))

	for {
		if err := t.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Printf("[trader] cycle fault: %v", err)
			observability.RecordTraderCycle("error")
			if nerr := t.notifier.Alert(ctx, fmt.Sprintf("trader cycle fault: %v", err)); nerr != nil {
				observability.RecordNotifyFailure()
				t.logger.Printf("[trader] notify failed: %v", nerr)
			}
		} else {
			observability.RecordTraderCycle("success")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.interval):
		}
	}
}

// Cycle runs one poll iteration: refresh the top-N, rebalance the
// portfolio at current prices, record the capital trend, and post the
// daily digest when due.
func (t *Trader) Cycle(ctx context.Context) error {
	topN, err := t.quickTopN(ctx)
	if err != nil {
		return fmt.Errorf("select top symbols: %w", err)
	}
	t.logger.Printf("[trader] selection: %v", topN)

	actions, recs := t.rebalance(topN)
	for _, rec := range recs {
		t.recordTrade(ctx, rec)
	}

	total := t.totalValue()
	if t.capital != nil {
		point := &domain.CapitalPoint{SeriesID: t.seriesID, Date: t.now(), Equity: total}
		if err := t.capital.InsertBulk(ctx, []*domain.CapitalPoint{point}); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("record capital trend: %w", err)
		}
	}

	t.maybeDailySummary(ctx, total, actions)
	return nil
}

// quickTopN scores the intersection of the configured universe and the
// persisted selection pool by trailing multi-year CAGR and returns the
// best performers.
func (t *Trader) quickTopN(ctx context.Context) ([]string, error) {
	pool := t.selectionPool(ctx)

	type scored struct {
		symbol string
		score  float64
	}
	var candidates []scored

	end := t.now()
	start := end.AddDate(-quickScoreLookback, 0, 0)
	for _, symbol := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := t.provider.GetBars(ctx, symbol, start, end, domain.IntervalDaily)
		if err != nil {
			if errors.Is(err, marketdata.ErrNoData) {
				continue
			}
			t.logger.Printf("[trader] quick score %s: %v", symbol, err)
			continue
		}
		if len(bars) < 2 || bars[0].Close <= 0 {
			continue
		}
		cagr := math.Pow(bars[len(bars)-1].Close/bars[0].Close, 252/float64(len(bars))) - 1
		candidates = append(candidates, scored{symbol: symbol, score: cagr})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > t.topN {
		candidates = candidates[:t.topN]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.symbol
	}
	return out, nil
}

// selectionPool intersects the configured symbols with the latest
// rebalance snapshot. Without a snapshot the whole universe qualifies.
func (t *Trader) selectionPool(ctx context.Context) []string {
	if t.history == nil {
		return t.symbols
	}
	snapshot, err := t.history.Latest(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Printf("[trader] load selection pool: %v", err)
		}
		return t.symbols
	}

	var pool []string
	for _, s := range t.symbols {
		if _, ok := snapshot[s]; ok {
			pool = append(pool, s)
		}
	}
	return pool
}

// rebalance closes holdings that dropped out of the selection and opens
// equal slots for the new top-N at current prices. Symbols without a
// known price are left untouched. The returned records are persisted by
// the caller, outside the lock.
func (t *Trader) rebalance(topN []string) ([]string, []*domain.TradeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	selected := make(map[string]bool, len(topN))
	for _, s := range topN {
		selected[s] = true
	}

	var actions []string
	var recs []*domain.TradeRecord
	now := t.now()

	for symbol, pos := range t.portfolio {
		if selected[symbol] {
			continue
		}
		price, ok := t.prices[symbol]
		if !ok {
			continue
		}
		t.cash += float64(pos.Shares) * price
		delete(t.portfolio, symbol)
		actions = append(actions, fmt.Sprintf("sell %s at %.2f", symbol, price))
		recs = append(recs, newLiveTrade(now, symbol, ActionSellRotation, price, pos.Shares))
	}

	if len(topN) == 0 {
		return actions, recs
	}
	perSlot := t.totalValueLocked() / float64(t.topN)

	for _, symbol := range topN {
		price, ok := t.prices[symbol]
		if !ok || price <= 0 {
			t.logger.Printf("[trader] no price for %s, skipping", symbol)
			continue
		}
		if _, held := t.portfolio[symbol]; held {
			continue
		}
		shares := int(math.Floor(perSlot / price))
		if shares <= 0 {
			continue
		}
		cost := float64(shares) * price
		if cost > t.cash {
			continue
		}
		t.cash -= cost
		t.portfolio[symbol] = holding{Shares: shares, EntryPrice: price}
		actions = append(actions, fmt.Sprintf("buy %s at %.2f x %d", symbol, price, shares))
		recs = append(recs, newLiveTrade(now, symbol, domain.ActionBuy, price, shares))
	}

	return actions, recs
}

func newLiveTrade(date time.Time, symbol, action string, price float64, shares int) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID: idhash.ComputeTradeID(symbol, action, date, price),
		Date:    date,
		Symbol:  symbol,
		Action:  action,
		Price:   price,
		Shares:  shares,
		Side:    domain.SideLong,
	}
}

// recordTrade persists and notifies one live trade. Both paths are
// failure-tolerant.
func (t *Trader) recordTrade(ctx context.Context, rec *domain.TradeRecord) {
	observability.RecordTrade(rec.Action)

	if t.trades != nil {
		if err := t.trades.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			t.logger.Printf("[trader] persist trade: %v", err)
		}
	}
	if err := t.notifier.Trade(ctx, rec); err != nil {
		observability.RecordNotifyFailure()
		t.logger.Printf("[trader] notify failed: %v", err)
	}
}

// totalValue is cash plus holdings marked at the latest known prices,
// falling back to entry price when no quote has arrived.
func (t *Trader) totalValue() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalValueLocked()
}

func (t *Trader) totalValueLocked() float64 {
	total := t.cash
	for symbol, pos := range t.portfolio {
		price, ok := t.prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		total += float64(pos.Shares) * price
	}
	return total
}

// maybeDailySummary posts the digest once per day inside the summary
// hour.
func (t *Trader) maybeDailySummary(ctx context.Context, total float64, actions []string) {
	now := t.now()
	if now.Hour() != traderSummaryHour || now.YearDay() == t.lastSummaryDay {
		return
	}
	t.lastSummaryDay = now.YearDay()

	var sb strings.Builder
	fmt.Fprintf(&sb, "daily summary\ncapital: %.2f\nholdings: %s\n", total, strings.Join(t.Holdings(), ", "))
	if len(actions) > 0 {
		fmt.Fprintf(&sb, "trades today: %s\n", strings.Join(actions, "; "))
	} else {
		sb.WriteString("trades today: none\n")
	}
	if err := t.notifier.Summary(ctx, sb.String()); err != nil {
		observability.RecordNotifyFailure()
		t.logger.Printf("[trader] notify failed: %v", err)
	}
}
