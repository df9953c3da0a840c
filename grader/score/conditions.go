package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/classify"
	"github.com/medsim/case-eval/grader/rubric"
)

// env is everything a condition may read: the run's signals and the thresholds of
// its difficulty tier.
type env struct {
	signals    *classify.Signals
	efficiency rubric.EfficiencyProfile
	safety     rubric.SafetyProfile
	orders     rubric.OrderThresholds
}

// conditionFunc reports whether a rubric entry qualifies and the fraction of the
// relevant message or order population supporting it. Boolean conditions report
// support 1 when they hold.
type conditionFunc func(e *env) (holds bool, support float64)

// conditions maps the condition names a rubric may reference to their evaluators.
// Unexported to prevent mutation.
var conditions = map[string]conditionFunc{
	"questions.high_yield": func(e *env) (bool, float64) {
		s := e.signals
		return s.QuestionCAUs > 0, s.HighYieldFraction()
	},
	"questions.unfocused": func(e *env) (bool, float64) {
		s := e.signals
		return s.QuestionCAUs > 0, ratio(s.QuestionCAUs-s.HighYieldQuestions, s.QuestionCAUs)
	},
	"questions.none": func(e *env) (bool, float64) {
		return exclusive(e.signals.QuestionCAUs == 0)
	},

	"directives.closed_loop_rationale": func(e *env) (bool, float64) {
		s := e.signals
		return s.Directives > 0, s.DirectiveFraction(s.ClosedLoopWithRationale)
	},
	"directives.closed_loop": func(e *env) (bool, float64) {
		s := e.signals
		return s.Directives > 0, s.DirectiveFraction(s.ClosedLoopDirectives)
	},
	"directives.open_loop": func(e *env) (bool, float64) {
		s := e.signals
		return s.Directives > 0, s.DirectiveFraction(s.OpenLoopDirectives)
	},
	"directives.none": func(e *env) (bool, float64) {
		return exclusive(e.signals.Directives == 0)
	},

	"efficiency.within_expected": func(e *env) (bool, float64) { return exclusive(efficiencySeverity(e) == 0) },
	"efficiency.minor":           func(e *env) (bool, float64) { return exclusive(efficiencySeverity(e) == -1) },
	"efficiency.major":           func(e *env) (bool, float64) { return exclusive(efficiencySeverity(e) == -2) },

	"orders.comprehensive": func(e *env) (bool, float64) { return exclusive(orderLevel(e) == 3) },
	"orders.good_core":     func(e *env) (bool, float64) { return exclusive(orderLevel(e) == 2) },
	"orders.partial_core":  func(e *env) (bool, float64) { return exclusive(orderLevel(e) == 1) },
	"orders.minimal":       func(e *env) (bool, float64) { return exclusive(orderLevel(e) == 0) },

	"note.aligned": func(e *env) (bool, float64) { return exclusive(e.signals.Alignment == grader.AlignmentAligned) },
	"note.partial": func(e *env) (bool, float64) { return exclusive(e.signals.Alignment == grader.AlignmentPartial) },
	"note.none":    func(e *env) (bool, float64) { return exclusive(e.signals.Alignment == grader.AlignmentNone) },

	"safety.no_concern": func(e *env) (bool, float64) { return exclusive(safetySeverity(e) == 0) },
	"safety.minor":      func(e *env) (bool, float64) { return exclusive(safetySeverity(e) == -1) },
	"safety.major":      func(e *env) (bool, float64) { return exclusive(safetySeverity(e) == -2) },
}

// IsValidCondition returns true if name is a recognized condition.
func IsValidCondition(name string) bool {
	_, ok := conditions[name]
	return ok
}

// ValidConditionNames returns sorted valid condition names.
func ValidConditionNames() []string {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// conditionFamilies lists the conditions each dimension may reference. Every run
// satisfies at least one member of a family, so a rubric that references the whole
// family always has a qualifying entry.
var conditionFamilies = map[grader.Dimension][]string{
	grader.InformationSharing:      {"questions.high_yield", "questions.unfocused", "questions.none"},
	grader.ResponsiveCommunication: {"directives.closed_loop_rationale", "directives.closed_loop", "directives.open_loop", "directives.none"},
	grader.EfficiencyDeduction:     {"efficiency.within_expected", "efficiency.minor", "efficiency.major"},
	grader.LabsOrdersQuality:       {"orders.comprehensive", "orders.good_core", "orders.partial_core", "orders.minimal"},
	grader.NoteThoughtProcess:      {"note.aligned", "note.partial", "note.none"},
	grader.SafetyDeduction:         {"safety.no_concern", "safety.minor", "safety.major"},
}

// conditionDimension maps each condition to the dimension it scores.
var conditionDimension = func() map[string]grader.Dimension {
	m := make(map[string]grader.Dimension)
	for dim, names := range conditionFamilies {
		for _, name := range names {
			m[name] = dim
		}
	}
	return m
}()

// checkConditions rejects a registry whose entries reference an unknown condition, a
// condition of another dimension, or leave part of a dimension's family unreferenced.
func checkConditions(reg *rubric.Registry) error {
	for _, dim := range grader.Dimensions {
		used := make(map[string]bool)
		for _, entry := range reg.Entries(dim) {
			name := entry.Condition
			if !IsValidCondition(name) {
				return grader.NewEntryError(dim, entry.Points,
					fmt.Sprintf("unknown condition %q; valid: %s", name, strings.Join(ValidConditionNames(), ", ")))
			}
			if owner := conditionDimension[name]; owner != dim {
				return grader.NewEntryError(dim, entry.Points,
					fmt.Sprintf("condition %q scores %s; valid: %s", name, owner, strings.Join(conditionFamilies[dim], ", ")))
			}
			used[name] = true
		}
		for _, name := range conditionFamilies[dim] {
			if !used[name] {
				return &grader.ConfigError{Dimension: dim,
					Reason: fmt.Sprintf("no entry uses condition %q; runs where it holds would have no qualifying entry", name)}
			}
		}
	}
	return nil
}

func exclusive(holds bool) (bool, float64) {
	if holds {
		return true, 1
	}
	return false, 0
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// efficiencySeverity is the worst band across CAU count, first meaningful order and
// question streak, or -2 when an unstable patient was not escalated in time. Never
// escalating counts the same as escalating late.
// A transcript without CAUs has nothing to penalize.
func efficiencySeverity(e *env) int {
	s, p := e.signals, e.efficiency
	if s.NoCAUs {
		return 0
	}
	sev := min(
		p.CAUCount.Severity(s.CAUCount),
		p.FirstMeaningfulOrder.Severity(s.FirstMeaningfulOrderOrdinal),
		p.QuestionStreak.Severity(s.QuestionStreak),
	)
	if s.Unstable && p.EscalationBy > 0 && (!s.HasEscalation || s.EscalationOrdinal > p.EscalationBy) {
		sev = -2
	}
	return sev
}

// safetySeverity returns the single most severe concern: a harmful or contraindicated
// order dominates redundant or unnecessary ones.
func safetySeverity(e *env) int {
	s, p := e.signals, e.safety
	switch {
	case len(s.Contraindicated) > 0:
		return -2
	case len(s.Redundant) > p.RedundantTolerance, s.ShouldntCount > p.ShouldntTolerance:
		return -1
	default:
		return 0
	}
}

// orderLevel grades must/should coverage and could restraint. Non-decreasing in must coverage.
func orderLevel(e *env) int {
	s, t := e.signals, e.orders
	switch {
	case s.MustCoverage >= t.NearCompleteMust && s.ShouldCoverage >= t.MostlyCompleteShould && s.CouldCount <= t.SparingCould:
		return 3
	case s.MustCoverage >= t.GoodCoreMust:
		return 2
	case s.MustCoverage >= t.PartialMust:
		return 1
	default:
		return 0
	}
}
