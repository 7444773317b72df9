package scoring

import "sort"

// Rank returns candidate positions ordered for recommendation: rows meeting
// every threshold first, then by descending utility. Ties keep input order.
// meets may be nil.
func Rank(utility []float64, meets []bool) []int {
	order := make([]int, len(utility))
	for i := range order {
		order[i] = i
	}
	ok := func(i int) bool { return meets == nil || meets[i] }
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if ok(ia) != ok(ib) {
			return ok(ia)
		}
		return utility[ia] > utility[ib]
	})
	return order
}
