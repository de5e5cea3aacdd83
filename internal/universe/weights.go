package universe

import (
	"errors"

	"equity-quant-lab/internal/domain"
)

// Allocation parameters.
const (
	// DefaultTopN is how many candidates enter the portfolio.
	DefaultTopN = 10
	// DefaultWeightCap is the ceiling on any single weight.
	DefaultWeightCap = 0.3
	// DecayThreshold is the fractional score drop that triggers a
	// weight cut.
	DecayThreshold = 0.3
)

// ErrDegenerateScores is returned when the selected scores cannot form
// a positive weight vector.
var ErrDegenerateScores = errors.New("universe: selected scores sum to zero or less")

// AssignWeights turns candidate scores into portfolio weights: weight
// proportional to score, with no single weight above cap. Excess mass
// from capped weights is redistributed proportionally among the
// uncapped ones, repeating until the cap binds nowhere new, so the
// vector always sums to 1. When fewer than 1/cap candidates remain the
// cap is lifted to 1/n, the tightest ceiling a full allocation allows.
func AssignWeights(selected []domain.CandidateScore, cap float64) ([]domain.Allocation, error) {
	if len(selected) == 0 {
		return nil, ErrDegenerateScores
	}

	var total float64
	for _, c := range selected {
		total += c.Score
	}
	if total <= 0 {
		return nil, ErrDegenerateScores
	}

	if cap*float64(len(selected)) < 1 {
		cap = 1 / float64(len(selected))
	}

	weights := make([]float64, len(selected))
	for i, c := range selected {
		weights[i] = c.Score / total
	}

	atCap := make([]bool, len(weights))
	for {
		var excess, free float64
		for i, w := range weights {
			if atCap[i] {
				continue
			}
			if w > cap {
				excess += w - cap
				weights[i] = cap
				atCap[i] = true
			} else {
				free += w
			}
		}
		if excess == 0 || free <= 0 {
			break
		}
		for i := range weights {
			if !atCap[i] {
				weights[i] += excess * weights[i] / free
			}
		}
	}

	allocs := make([]domain.Allocation, len(selected))
	for i, c := range selected {
		allocs[i] = domain.Allocation{Symbol: c.Symbol, Weight: weights[i], Action: "buy"}
	}
	return allocs, nil
}

// ApplyDecay halves the weight of any instrument whose new score has
// fallen more than threshold below its previous-cycle score, then
// renormalizes so the emitted vector still sums to 1.
func ApplyDecay(allocs []domain.Allocation, scores []domain.CandidateScore, previous domain.ScoreHistory, threshold float64) []domain.Allocation {
	if len(previous) == 0 {
		return allocs
	}

	current := make(map[string]float64, len(scores))
	for _, c := range scores {
		current[c.Symbol] = c.Score
	}

	out := make([]domain.Allocation, len(allocs))
	copy(out, allocs)

	var total float64
	for i := range out {
		last, ok := previous[out[i].Symbol]
		if ok && last > 0 && current[out[i].Symbol] < last*(1-threshold) {
			out[i].Weight *= 0.5
		}
		total += out[i].Weight
	}
	if total <= 0 {
		return out
	}

	for i := range out {
		out[i].Weight /= total
	}
	return out
}
