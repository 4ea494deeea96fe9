package journal

import (
	"github.com/shopspring/decimal"
)

// subsetSum finds positions in 'amounts' whose values sum exactly to
// 'target', preferring subsets drawn from the front of the list. Returns nil
// when no subset exists.
//
// The search grows a dictionary of achievable partial sums instead of
// enumerating all 2^n subsets, trading exponential time for O(n²) time and
// space in the number of distinct partial sums. That is still too expensive
// for large posting lists, so callers bound n with a narrow date window.
func subsetSum(amounts []decimal.Decimal, target decimal.Decimal) []int {
	type entry struct {
		sum     decimal.Decimal
		indices []int
	}
	sums := make(map[string]entry)
	var order []string // insertion order, so earlier (front-biased) subsets win ties

	for i, amount := range amounts {
		diff := target.Sub(amount)
		// a single-element match wins outright
		if diff.IsZero() {
			return []int{i}
		}
		if found, exists := sums[amountKey(diff)]; exists {
			return append(found.indices, i)
		}

		// extend every pre-existing partial sum by this amount, keeping the
		// first subset recorded for each sum
		known := order[:len(order):len(order)]
		for _, key := range known {
			previous := sums[key]
			newSum := previous.sum.Add(amount)
			newKey := amountKey(newSum)
			if _, exists := sums[newKey]; exists {
				continue
			}
			indices := make([]int, 0, len(previous.indices)+1)
			indices = append(indices, previous.indices...)
			indices = append(indices, i)
			sums[newKey] = entry{sum: newSum, indices: indices}
			order = append(order, newKey)
		}
		singleKey := amountKey(amount)
		if _, exists := sums[singleKey]; !exists {
			sums[singleKey] = entry{sum: amount, indices: []int{i}}
			order = append(order, singleKey)
		}
	}
	return nil
}
