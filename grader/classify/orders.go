package classify

import (
	"sort"

	"github.com/medsim/case-eval/grader"
)

// byPlacement returns a copy of orders sorted by sequence position, ties kept in input order.
func byPlacement(orders []grader.Order) []grader.Order {
	sorted := append([]grader.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted
}

// IsMeaningful reports whether an order's tier is must or should.
func IsMeaningful(o grader.Order) bool {
	return o.Tier == grader.TierMust || o.Tier == grader.TierShould
}

// PositionOfFirstMeaningfulOrder returns the sequence position of the earliest must or
// should order. The boolean is false when no such order was placed.
func PositionOfFirstMeaningfulOrder(orders []grader.Order) (int, bool) {
	for _, o := range byPlacement(orders) {
		if IsMeaningful(o) {
			return o.Position, true
		}
	}
	return 0, false
}

// PositionOfFirstEscalation returns the position of the earliest escalation or bedside order.
func PositionOfFirstEscalation(orders []grader.Order) (int, bool) {
	for _, o := range byPlacement(orders) {
		if o.Category == grader.CategoryEscalation || o.Category == grader.CategoryBedside {
			return o.Position, true
		}
	}
	return 0, false
}

// RedundantOrders returns every repeat placement of the same name and category that no
// status change justifies. A status change justifies a repeat when it happens after the
// previous placement and no later than the repeat.
func RedundantOrders(orders []grader.Order, statusChanges []int) []grader.Order {
	changes := append([]int(nil), statusChanges...)
	sort.Ints(changes)

	last := make(map[string]int)
	var redundant []grader.Order
	for _, o := range byPlacement(orders) {
		prev, seen := last[o.Key()]
		last[o.Key()] = o.Position
		if !seen {
			continue
		}
		i := sort.SearchInts(changes, prev+1)
		if i < len(changes) && changes[i] <= o.Position {
			continue
		}
		redundant = append(redundant, o)
	}
	return redundant
}

// HasRedundantOrder reports whether any order was repeated without a justifying status change.
func HasRedundantOrder(orders []grader.Order, statusChanges []int) bool {
	return len(RedundantOrders(orders, statusChanges)) > 0
}

// OrdersByNecessityTier partitions orders by tier, each partition in placement order.
func OrdersByNecessityTier(orders []grader.Order) map[grader.Tier][]grader.Order {
	byTier := make(map[grader.Tier][]grader.Order)
	for _, o := range byPlacement(orders) {
		byTier[o.Tier] = append(byTier[o.Tier], o)
	}
	return byTier
}

// Coverage returns the fraction of expected orders of a tier that were placed.
// The expected set is the case catalog's entries of that tier plus any placed order of
// that tier missing from the catalog. An empty expected set has full coverage.
func Coverage(tier grader.Tier, orders []grader.Order, catalog []grader.CatalogOrder) float64 {
	expected := make(map[string]bool)
	for _, c := range catalog {
		if c.Tier == tier {
			expected[grader.Order{Name: c.Name, Category: c.Category}.Key()] = true
		}
	}
	placed := make(map[string]bool)
	for _, o := range orders {
		if o.Tier == tier {
			placed[o.Key()] = true
			expected[o.Key()] = true
		}
	}
	if len(expected) == 0 {
		return 1.0
	}
	return float64(len(placed)) / float64(len(expected))
}

// Contraindicated returns mustnt orders and orders externally flagged as contraindicated.
func Contraindicated(orders []grader.Order) []grader.Order {
	var out []grader.Order
	for _, o := range byPlacement(orders) {
		if o.Tier == grader.TierMustnt || o.Contraindicated {
			out = append(out, o)
		}
	}
	return out
}
