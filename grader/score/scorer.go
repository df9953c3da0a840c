// Package score applies rubric thresholds to classifier signals: one point value per
// dimension, summed into two composites and clamped to [0,5].
package score

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/classify"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/trace"
)

// majority is the support above which a qualifying entry wins outright.
const majority = 0.5

// DimensionScore is the selected point value of one dimension.
type DimensionScore struct {
	Dimension grader.Dimension
	Points    int
	Condition string
	Support   float64
}

// Composites holds raw and clamped composite scores.
type Composites struct {
	CommunicationRaw int
	MDMRaw           int
	Communication    int
	MDM              int
	// ZeroOverride is set when the transcript had no CAUs and both composites were forced to 0.
	ZeroOverride bool
}

// Outcome is the scorer's result for one run.
type Outcome struct {
	Scores     []DimensionScore // report order, see grader.Dimensions
	Composites Composites
}

// Points returns the selected points of a dimension.
func (o *Outcome) Points(dim grader.Dimension) int {
	for _, s := range o.Scores {
		if s.Dimension == dim {
			return s.Points
		}
	}
	return 0
}

// Scorer selects dimension scores against a registry. Safe for concurrent use.
type Scorer struct {
	registry *rubric.Registry
	policy   TieBreakPolicy
}

// New creates a Scorer. Every dimension must reference exactly its own condition family,
// otherwise a configuration error is returned.
func New(reg *rubric.Registry, policyName string) (*Scorer, error) {
	if !IsValidTieBreakPolicy(policyName) {
		return nil, &grader.ConfigError{Reason: fmt.Sprintf("unknown tie-break policy %q; valid: %v", policyName, ValidTieBreakPolicies())}
	}
	if err := checkConditions(reg); err != nil {
		return nil, err
	}
	return &Scorer{registry: reg, policy: NewTieBreakPolicy(policyName)}, nil
}

// Policy returns the tie-break policy in use.
func (sc *Scorer) Policy() TieBreakPolicy { return sc.policy }

// Score selects one point value per dimension and composes the composites.
// Selections are recorded on tr, which may be nil.
func (sc *Scorer) Score(s *classify.Signals, tr *trace.EvaluationTrace) (*Outcome, error) {
	ep, err := sc.registry.EfficiencyProfile(s.Difficulty)
	if err != nil {
		return nil, err
	}
	sp, err := sc.registry.SafetyProfile(s.Difficulty)
	if err != nil {
		return nil, err
	}
	e := &env{signals: s, efficiency: ep, safety: sp, orders: sc.registry.OrderThresholds()}

	out := &Outcome{Scores: make([]DimensionScore, 0, len(grader.Dimensions))}
	for _, dim := range grader.Dimensions {
		ds, err := sc.selectEntry(dim, e, tr)
		if err != nil {
			return nil, err
		}
		out.Scores = append(out.Scores, ds)
	}
	out.Composites = Compose(out.Scores, s.NoCAUs)
	if out.Composites.ZeroOverride {
		logrus.Debugf("no clinical action units; composites forced to 0 (raw communication=%d, mdm=%d)",
			out.Composites.CommunicationRaw, out.Composites.MDMRaw)
		tr.RecordOverride(trace.OverrideRecord{
			CommunicationRaw: out.Composites.CommunicationRaw,
			MDMRaw:           out.Composites.MDMRaw,
		})
	}
	return out, nil
}

// selectEntry walks a dimension's entries from highest to lowest points. The first
// qualifying entry supported by a majority wins; otherwise the best-supported
// qualifying entry wins, with exact ties resolved by the tie-break policy.
func (sc *Scorer) selectEntry(dim grader.Dimension, e *env, tr *trace.EvaluationTrace) (DimensionScore, error) {
	entries := sc.registry.Entries(dim)
	record := trace.SelectionRecord{Dimension: string(dim), Candidates: make([]trace.CandidateRecord, 0, len(entries))}

	var qualifying []Candidate
	for _, entry := range entries {
		holds, support := conditions[entry.Condition](e)
		record.Candidates = append(record.Candidates, trace.CandidateRecord{
			Points:    entry.Points,
			Condition: entry.Condition,
			Holds:     holds,
			Support:   support,
		})
		if holds {
			qualifying = append(qualifying, Candidate{Points: entry.Points, Condition: entry.Condition, Support: support})
		}
	}
	if len(qualifying) == 0 {
		return DimensionScore{}, &grader.ConfigError{Dimension: dim, Reason: "no rubric entry qualifies for the observed signals"}
	}

	chosen, rule := sc.choose(qualifying)
	record.Selected = chosen.Points
	record.Rule = rule
	if rule == trace.RuleTieBreak {
		record.Policy = sc.policy.Name()
		logrus.Debugf("%s: support tie at %.3f resolved by %s to %d points", dim, chosen.Support, sc.policy.Name(), chosen.Points)
	}
	tr.RecordSelection(record)

	return DimensionScore{Dimension: dim, Points: chosen.Points, Condition: chosen.Condition, Support: chosen.Support}, nil
}

func (sc *Scorer) choose(qualifying []Candidate) (Candidate, string) {
	for _, c := range qualifying {
		if c.Support > majority {
			return c, trace.RuleMajority
		}
	}
	best := qualifying[0].Support
	for _, c := range qualifying[1:] {
		best = max(best, c.Support)
	}
	var tied []Candidate
	for _, c := range qualifying {
		if c.Support == best {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0], trace.RuleHighestSupport
	}
	return sc.policy.Choose(tied), trace.RuleTieBreak
}

// Compose sums each composite's dimensions and clamps the sums independently.
// With noCAUs set both composites are 0 whatever the dimensions selected.
func Compose(scores []DimensionScore, noCAUs bool) Composites {
	var c Composites
	for _, s := range scores {
		switch s.Dimension.Composite() {
		case grader.Communication:
			c.CommunicationRaw += s.Points
		case grader.MedicalDecisionMaking:
			c.MDMRaw += s.Points
		}
	}
	if noCAUs {
		c.ZeroOverride = true
		return c
	}
	c.Communication = Clamp(c.CommunicationRaw, grader.CompositeMin, grader.CompositeMax)
	c.MDM = Clamp(c.MDMRaw, grader.CompositeMin, grader.CompositeMax)
	return c
}

// Clamp bounds v into [lo, hi], truncating rather than scaling.
func Clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
