package domain

import "time"

// TradeRecord represents one entry or exit in the append-only trade log.
type TradeRecord struct {
	TradeID string // deterministic hash, see internal/idhash
	Date    time.Time
	Symbol  string
	Action  string // BUY, SHORT_SELL, or an exit reason tag
	Price   float64
	Shares  int
	Side    Side
}

// Entry action tags.
const (
	ActionBuy       = "BUY"
	ActionShortSell = "SHORT_SELL"
)

// Long exit reason tags, in evaluation precedence order.
const (
	SellStopLoss     = "SELL_STOP_LOSS"
	SellTakeProfit   = "SELL_TAKE_PROFIT"
	SellTrailingStop = "SELL_TRAILING_STOP"
	SellFakeBreak    = "SELL_FAKE_BREAK"
)

// Short exit reason tags, in evaluation precedence order.
const (
	CoverStopLoss     = "COVER_STOP_LOSS"
	CoverTakeProfit   = "COVER_TAKE_PROFIT"
	CoverTrailingStop = "COVER_TRAILING_STOP"
	CoverFakeBreak    = "COVER_FAKE_BREAK"
)

// Hold indicates no exit condition matched.
const Hold = "HOLD"
