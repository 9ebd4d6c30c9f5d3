package pricing

import (
	"math"
	"sort"
)

// Summarize reduces a collection of prices into p10/p50/p90 bands using the
// nearest-rank method: index = ceil(p*n) - 1, clamped to [0, n-1]. Sorting
// once and applying the same rank rule to all three bands guarantees
// P10 <= P50 <= P90 by construction. An empty input yields a zero summary;
// a single element fills all three bands.
func Summarize(prices []float64) PercentileSummary {
	n := len(prices)
	if n == 0 {
		return PercentileSummary{}
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	return PercentileSummary{
		P10:   sorted[nearestRank(0.10, n)],
		P50:   sorted[nearestRank(0.50, n)],
		P90:   sorted[nearestRank(0.90, n)],
		Count: n,
	}
}

func nearestRank(percentile float64, n int) int {
	idx := int(math.Ceil(percentile*float64(n))) - 1
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
