// Package worker hosts the long-running loops: the monthly rebalance
// worker and the near-real-time virtual trader. Loops block on timers,
// honor context cancellation, and recover from cycle faults with a
// cooldown instead of exiting.
package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"equity-quant-lab/internal/notify"
	"equity-quant-lab/internal/observability"
	"equity-quant-lab/internal/universe"
)

// Rebalance loop intervals.
const (
	// RebalanceRest is the sleep after a completed cycle.
	RebalanceRest = 24 * time.Hour
	// RebalanceCheck is the sleep between rebalance-day checks.
	RebalanceCheck = time.Hour
	// RebalanceCooldown is the sleep after a cycle fault.
	RebalanceCooldown = 10 * time.Minute
)

// RebalanceWorker runs a universe rebalance cycle on the first day of
// each month and sleeps the rest of the time.
type RebalanceWorker struct {
	rebalancer *universe.Rebalancer
	symbols    []string
	notifier   notify.Notifier
	sink       universe.OrderPlacer
	logger     *log.Logger

	now      func() time.Time
	rest     time.Duration
	check    time.Duration
	cooldown time.Duration
}

// NewRebalanceWorker wires the worker with default intervals.
func NewRebalanceWorker(r *universe.Rebalancer, symbols []string, notifier notify.Notifier, logger *log.Logger) *RebalanceWorker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RebalanceWorker{
		rebalancer: r,
		symbols:    symbols,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		rest:       RebalanceRest,
		check:      RebalanceCheck,
		cooldown:   RebalanceCooldown,
	}
}

// SetIntervals overrides the loop timers.
func (w *RebalanceWorker) SetIntervals(rest, check, cooldown time.Duration) {
	w.rest = rest
	w.check = check
	w.cooldown = cooldown
}

// SetClock overrides the clock.
func (w *RebalanceWorker) SetClock(now func() time.Time) { w.now = now }

// SetOrderPlacer wires the collaborator that receives each cycle's
// allocation. Without one, allocations are only persisted and notified.
func (w *RebalanceWorker) SetOrderPlacer(sink universe.OrderPlacer) { w.sink = sink }

// isRebalanceDay reports whether t falls on the monthly rebalance day.
func isRebalanceDay(t time.Time) bool {
	return t.Day() == 1
}

// Run loops until the context is cancelled. A faulted cycle is logged,
// notified, and retried after the cooldown.
func (w *RebalanceWorker) Run(ctx context.Context) error {
	w.logger.Printf("[rebalance-worker] starting, %d symbols in universe", len(w.symbols))

	for {
		wait := w.check
		now := w.now()
		if isRebalanceDay(now) {
			if err := w.runCycle(ctx, now); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Printf("[rebalance-worker] cycle fault: %v", err)
				observability.RecordRebalanceCycle("error", 0, 0)
				if nerr := w.notifier.Alert(ctx, fmt.Sprintf("rebalance cycle fault: %v", err)); nerr != nil {
					observability.RecordNotifyFailure()
					w.logger.Printf("[rebalance-worker] notify failed: %v", nerr)
				}
				wait = w.cooldown
			} else {
				wait = w.rest
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunOnce executes a single cycle regardless of the calendar day.
func (w *RebalanceWorker) RunOnce(ctx context.Context) error {
	return w.runCycle(ctx, w.now())
}

func (w *RebalanceWorker) runCycle(ctx context.Context, now time.Time) error {
	w.logger.Printf("[rebalance-worker] running cycle at %s", now.Format("2006-01-02"))

	allocs, scored, err := w.rebalancer.Cycle(ctx, w.symbols, now)
	if err != nil {
		return err
	}

	if w.sink != nil && len(allocs) > 0 {
		if err := w.sink.Place(ctx, allocs); err != nil {
			return fmt.Errorf("place allocation: %w", err)
		}
	}

	observability.RecordRebalanceCycle("success", len(scored), len(allocs))
	observability.DefaultMetrics.LastSuccessfulCycle.Set(float64(w.now().Unix()))

	var sb strings.Builder
	sb.WriteString("rebalance complete, new allocation:\n")
	for _, a := range allocs {
		fmt.Fprintf(&sb, "%s %.2f%%\n", a.Symbol, a.Weight*100)
	}
	if len(allocs) == 0 {
		sb.WriteString("no candidates selected\n")
	}
	if nerr := w.notifier.Summary(ctx, sb.String()); nerr != nil {
		observability.RecordNotifyFailure()
		w.logger.Printf("[rebalance-worker] notify failed: %v", nerr)
	}

	w.logger.Printf("[rebalance-worker] cycle done: %d scored, %d allocated", len(scored), len(allocs))
	return nil
}
