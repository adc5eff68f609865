package scoring

import "fmt"

// DiscardRule is an ordered list of race-count thresholds: crossing the n-th
// threshold permits discarding the n worst results. Which columns are
// discarded is decided by the engine; the rule is purely a function of how
// many race columns have completed.
type DiscardRule struct {
	thresholds []int
}

// NewDiscardRule validates and builds a rule. Thresholds must be positive
// and strictly increasing; anything else fails with ErrInvalidDiscardRule at
// configuration time, before any scoring is attempted.
func NewDiscardRule(thresholds ...int) (DiscardRule, error) {
	prev := 0
	for i, t := range thresholds {
		if t <= prev {
			return DiscardRule{}, fmt.Errorf("%w: threshold %d at index %d must exceed %d", ErrInvalidDiscardRule, t, i, prev)
		}
		prev = t
	}
	return DiscardRule{thresholds: append([]int(nil), thresholds...)}, nil
}

// Permitted returns how many results may be discarded once the given number
// of race columns has completed. It is monotonically non-decreasing in
// completed.
func (r DiscardRule) Permitted(completed int) int {
	n := 0
	for _, t := range r.thresholds {
		if completed >= t {
			n++
		}
	}
	return n
}
