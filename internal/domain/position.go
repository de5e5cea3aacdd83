package domain

// Side identifies the direction of an open position.
type Side string

// Position sides.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position represents one open position for an instrument.
// At most one Position exists per instrument at any time; absence means flat.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	Shares     int // integer share count, always > 0 while open

	// MaxProfit is the running maximum observed profit ratio since entry.
	// It is monotonic non-decreasing for the lifetime of the position.
	MaxProfit float64

	// Anchor is the trailing-stop trigger level fixed at entry:
	// the recent swing high for longs (exit when price falls below it)
	// and the recent swing low for shorts (exit when price rises above it).
	Anchor float64
}
