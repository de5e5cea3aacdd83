// Package notify delivers trade and operational events to external
// channels. Delivery failures are never fatal: callers log and move on.
package notify

import (
	"context"

	"equity-quant-lab/internal/domain"
)

// Notifier receives events emitted by backtests, the rebalancer, and
// the live trader.
type Notifier interface {
	// Trade reports one executed trade to the trade channel.
	Trade(ctx context.Context, t *domain.TradeRecord) error

	// Summary posts a free-form report (daily digest, cycle result) to
	// the trade channel.
	Summary(ctx context.Context, text string) error

	// Alert posts an operational warning to the guardian channel.
	Alert(ctx context.Context, text string) error
}

// Nop is a Notifier that discards all events.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Trade(context.Context, *domain.TradeRecord) error { return nil }
func (Nop) Summary(context.Context, string) error            { return nil }
func (Nop) Alert(context.Context, string) error              { return nil }
