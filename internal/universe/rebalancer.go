package universe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/storage"
)

// OrderPlacer consumes the allocation emitted by a rebalance cycle.
// Order execution lives outside this package; implementations forward
// the (symbol, weight, action) targets to whatever places the trades.
type OrderPlacer interface {
	Place(ctx context.Context, allocs []domain.Allocation) error
}

// Rebalancer runs one full screen/score/allocate cycle over a symbol
// universe and persists the resulting score snapshot.
type Rebalancer struct {
	provider  marketdata.Provider
	history   storage.ScoreHistoryStore
	weights   ScoreWeights
	screen    ScreenConfig
	topN      int
	weightCap float64
	logger    *log.Logger
}

// NewRebalancer creates a rebalancer with the default selection size
// and weight cap.
func NewRebalancer(provider marketdata.Provider, history storage.ScoreHistoryStore, weights ScoreWeights, screen ScreenConfig, logger *log.Logger) *Rebalancer {
	return &Rebalancer{
		provider:  provider,
		history:   history,
		weights:   weights,
		screen:    screen,
		topN:      DefaultTopN,
		weightCap: DefaultWeightCap,
		logger:    logger,
	}
}

// SetSelection overrides the selection size and weight cap.
func (r *Rebalancer) SetSelection(topN int, weightCap float64) {
	r.topN = topN
	r.weightCap = weightCap
}

// Cycle screens and scores every symbol, selects the top candidates,
// assigns capped weights, applies score-decay cuts against the previous
// snapshot, and saves the new snapshot at now. Symbols with no data or
// too little history are skipped, not fatal.
func (r *Rebalancer) Cycle(ctx context.Context, symbols []string, now time.Time) ([]domain.Allocation, []domain.CandidateScore, error) {
	historyStart := now.AddDate(-2, 0, 0)
	windowStart := now.AddDate(0, 0, -ScoreWindowDays)

	var scored []domain.CandidateScore
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		bars, err := r.provider.GetBars(ctx, symbol, historyStart, now, domain.IntervalDaily)
		if err != nil {
			if errors.Is(err, marketdata.ErrNoData) {
				r.logger.Printf("[rebalancer] no data for %s, skipping", symbol)
				continue
			}
			return nil, nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
		}

		if !Suitable(bars, r.screen) {
			continue
		}

		window := barsSince(bars, windowStart)
		score, err := ScoreCandidate(symbol, window, r.weights)
		if err != nil {
			if errors.Is(err, ErrInsufficientHistory) {
				r.logger.Printf("[rebalancer] %s passed screen but has only %d bars in window, skipping", symbol, len(window))
				continue
			}
			return nil, nil, fmt.Errorf("score %s: %w", symbol, err)
		}
		scored = append(scored, score)
	}

	if len(scored) == 0 {
		r.logger.Printf("[rebalancer] no candidates survived screening")
		return nil, nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	selected := scored
	if len(selected) > r.topN {
		selected = selected[:r.topN]
	}

	allocs, err := AssignWeights(selected, r.weightCap)
	if err != nil {
		return nil, scored, fmt.Errorf("assign weights: %w", err)
	}

	previous, err := r.history.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, scored, fmt.Errorf("load previous scores: %w", err)
	}
	allocs = ApplyDecay(allocs, selected, previous, DecayThreshold)

	snapshot := make(domain.ScoreHistory, len(selected))
	for _, c := range selected {
		snapshot[c.Symbol] = c.Score
	}
	// A duplicate key means a re-run at the same timestamp; the stored
	// snapshot is already this one.
	if err := r.history.Save(ctx, now, snapshot); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, scored, fmt.Errorf("save score snapshot: %w", err)
	}

	r.logger.Printf("[rebalancer] cycle complete: %d screened, %d selected", len(scored), len(selected))
	return allocs, selected, nil
}

// barsSince returns the suffix of bars dated at or after start.
func barsSince(bars []domain.PriceBar, start time.Time) []domain.PriceBar {
	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Date.Before(start)
	})
	return bars[i:]
}
