// Package ledger implements the per-instrument position and capital
// state machine. A Ledger owns one instrument's cash slot and at most
// one open position; all mutation goes through the transition methods,
// never from outside.
package ledger

import (
	"errors"
	"math"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/idhash"
)

// Errors returned by ledger transitions.
var (
	// ErrPositionOpen is returned when an entry is attempted while a
	// position is already open.
	ErrPositionOpen = errors.New("ledger: position already open")

	// ErrNoPosition is returned when an exit or mark is attempted flat.
	ErrNoPosition = errors.New("ledger: no open position")

	// ErrZeroShares is returned when floor(cash/price) computes to zero,
	// leaving nothing to open.
	ErrZeroShares = errors.New("ledger: computed share count is zero")
)

// Ledger tracks one instrument's trading slot: available cash, the open
// position if any, and the append-only trade log for the run.
//
// Capital is partitioned up front into non-overlapping per-instrument
// slots, so a Ledger never shares cash with another instrument and
// needs no lock when runs are parallelized per instrument.
type Ledger struct {
	symbol string
	cash   float64
	pos    *domain.Position
	trades []*domain.TradeRecord
}

// New creates a ledger for one instrument slot with its earmarked cash.
func New(symbol string, cash float64) *Ledger {
	return &Ledger{symbol: symbol, cash: cash}
}

// Symbol returns the instrument this ledger tracks.
func (l *Ledger) Symbol() string { return l.symbol }

// Cash returns the available cash in this slot.
func (l *Ledger) Cash() float64 { return l.cash }

// Position returns the open position, or nil when flat.
func (l *Ledger) Position() *domain.Position { return l.pos }

// Trades returns the trade records appended during this run.
func (l *Ledger) Trades() []*domain.TradeRecord { return l.trades }

// OpenLong transitions Flat -> Long. Shares are sized as
// floor(cash/price); the transition is rejected when that is zero.
// Cash decreases by price*shares and is clamped at zero.
func (l *Ledger) OpenLong(date time.Time, price, anchor float64) (*domain.TradeRecord, error) {
	return l.open(date, price, anchor, domain.SideLong)
}

// OpenShort transitions Flat -> Short. Proceeds are held as if credited;
// no margin model is applied.
func (l *Ledger) OpenShort(date time.Time, price, anchor float64) (*domain.TradeRecord, error) {
	return l.open(date, price, anchor, domain.SideShort)
}

func (l *Ledger) open(date time.Time, price, anchor float64, side domain.Side) (*domain.TradeRecord, error) {
	if l.pos != nil {
		return nil, ErrPositionOpen
	}
	shares := int(math.Floor(l.cash / price))
	if shares <= 0 {
		return nil, ErrZeroShares
	}

	action := domain.ActionBuy
	if side == domain.SideShort {
		action = domain.ActionShortSell
		l.cash = clamp(l.cash + price*float64(shares))
	} else {
		l.cash = clamp(l.cash - price*float64(shares))
	}

	l.pos = &domain.Position{
		Symbol:     l.symbol,
		Side:       side,
		EntryPrice: price,
		Shares:     shares,
		Anchor:     anchor,
	}

	rec := l.record(date, action, price, shares, side)
	return rec, nil
}

// Close transitions Long -> Flat or Short -> Flat, recording the trade
// with the specific exit reason as the action tag. Long exits credit
// price*shares back to cash; short exits debit the buy-back cost.
func (l *Ledger) Close(date time.Time, price float64, reason string) (*domain.TradeRecord, error) {
	if l.pos == nil {
		return nil, ErrNoPosition
	}

	pos := l.pos
	if pos.Side == domain.SideLong {
		l.cash = clamp(l.cash + price*float64(pos.Shares))
	} else {
		l.cash = clamp(l.cash - price*float64(pos.Shares))
	}
	l.pos = nil

	rec := l.record(date, reason, price, pos.Shares, pos.Side)
	return rec, nil
}

// Mark updates the running max-profit ratio for the open position at
// the current price. The ratio is monotonic: it never decreases while
// the position stays open. Returns the current profit ratio.
func (l *Ledger) Mark(price float64) (float64, error) {
	if l.pos == nil {
		return 0, ErrNoPosition
	}

	var profit float64
	if l.pos.Side == domain.SideLong {
		profit = (price - l.pos.EntryPrice) / l.pos.EntryPrice
	} else {
		profit = (l.pos.EntryPrice - price) / l.pos.EntryPrice
	}
	if profit > l.pos.MaxProfit {
		l.pos.MaxProfit = profit
	}
	return profit, nil
}

// Equity returns cash plus the mark-to-market value of any open
// position at the given price. A short position is valued at its
// unrealized gain, floored at zero, matching how the short's entry
// proceeds were already credited to cash.
func (l *Ledger) Equity(price float64) float64 {
	total := l.cash
	if l.pos == nil {
		return total
	}
	if l.pos.Side == domain.SideLong {
		total += price * float64(l.pos.Shares)
	} else {
		gain := l.pos.EntryPrice - price
		if gain > 0 {
			total += gain * float64(l.pos.Shares)
		}
	}
	return total
}

func (l *Ledger) record(date time.Time, action string, price float64, shares int, side domain.Side) *domain.TradeRecord {
	rec := &domain.TradeRecord{
		TradeID: idhash.ComputeTradeID(l.symbol, action, date, price),
		Date:    date,
		Symbol:  l.symbol,
		Action:  action,
		Price:   price,
		Shares:  shares,
		Side:    side,
	}
	l.trades = append(l.trades, rec)
	return rec
}

// clamp floors cash at zero; the slot is never allowed to go negative.
func clamp(cash float64) float64 {
	if cash < 0 {
		return 0
	}
	return cash
}
