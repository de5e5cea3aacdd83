// Package regime classifies coarse market direction from moving-average
// ordering.
package regime

// Regime is a binary bull/bear market classification.
type Regime int

// Classification results. Neutral means the averages are exactly equal
// and callers must treat the step as flat/no-signal.
const (
	Neutral Regime = iota
	Bull
	Bear
)

// String returns the lowercase regime name.
func (r Regime) String() string {
	switch r {
	case Bull:
		return "bull"
	case Bear:
		return "bear"
	default:
		return "neutral"
	}
}

// Classify determines the regime from the latest MA50 and MA150 values.
// It is stateless and has no hysteresis: every step is reclassified
// independently, so the regime can flip on any bar where the averages
// cross.
func Classify(ma50, ma150 float64) Regime {
	switch {
	case ma50 > ma150:
		return Bull
	case ma50 < ma150:
		return Bear
	default:
		return Neutral
	}
}
