package score

import (
	"fmt"
	"sort"
)

// Candidate is a qualifying rubric entry with its support.
type Candidate struct {
	Points    int
	Condition string
	Support   float64
}

// TieBreakPolicy picks one candidate among several sharing the highest support when
// none is supported by a majority. Implementations must be deterministic.
type TieBreakPolicy interface {
	Name() string
	Choose(tied []Candidate) Candidate
}

// PreferLower resolves ties toward the lower point value. An even split is not a
// majority, so the stricter reading wins.
type PreferLower struct{}

func (PreferLower) Name() string { return "prefer-lower" }

func (PreferLower) Choose(tied []Candidate) Candidate {
	best := tied[0]
	for _, c := range tied[1:] {
		if c.Points < best.Points {
			best = c
		}
	}
	return best
}

// PreferHigher resolves ties toward the higher point value.
type PreferHigher struct{}

func (PreferHigher) Name() string { return "prefer-higher" }

func (PreferHigher) Choose(tied []Candidate) Candidate {
	best := tied[0]
	for _, c := range tied[1:] {
		if c.Points > best.Points {
			best = c
		}
	}
	return best
}

// DefaultTieBreak is used when no policy name is given.
const DefaultTieBreak = "prefer-lower"

// validTieBreakPolicies is the set of recognized tie-break policy names.
var validTieBreakPolicies = map[string]bool{"": true, "prefer-lower": true, "prefer-higher": true}

// IsValidTieBreakPolicy returns true if name is a recognized tie-break policy.
func IsValidTieBreakPolicy(name string) bool { return validTieBreakPolicies[name] }

// ValidTieBreakPolicies returns sorted non-empty policy names.
func ValidTieBreakPolicies() []string {
	names := make([]string, 0, len(validTieBreakPolicies))
	for name := range validTieBreakPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewTieBreakPolicy creates a tie-break policy by name.
// An empty string defaults to prefer-lower.
// Panics on unrecognized names (validation should catch this before reaching here).
func NewTieBreakPolicy(name string) TieBreakPolicy {
	switch name {
	case "", "prefer-lower":
		return PreferLower{}
	case "prefer-higher":
		return PreferHigher{}
	default:
		panic(fmt.Sprintf("unknown tie-break policy %q", name))
	}
}
