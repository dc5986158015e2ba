package metrics

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyInput is returned by CVaR when xs is empty.
var ErrEmptyInput = errors.New("metrics: empty input")

// CVaR computes the Conditional Value at Risk (tail mean) of xs at level
// alpha ∈ (0,1]: sort ascending, take k = max(1, ⌈α·n⌉) lowest values,
// return their mean. xs is not mutated.
func CVaR(xs []float64, alpha float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptyInput
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := len(sorted)
	k := int(math.Ceil(alpha * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	sum := 0.0
	for _, v := range sorted[:k] {
		sum += v
	}
	return sum / float64(k), nil
}
