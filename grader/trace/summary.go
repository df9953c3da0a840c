package trace

// TraceSummary aggregates statistics from an EvaluationTrace.
type TraceSummary struct {
	TotalSelections int
	MajorityCount   int
	HighestSupport  int
	TieBreaks       int
	ZeroOverride    bool
	Points          map[string]int // dimension → selected points
}

// Summarize computes aggregate statistics from an EvaluationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(t *EvaluationTrace) *TraceSummary {
	summary := &TraceSummary{
		Points: make(map[string]int),
	}
	if t == nil {
		return summary
	}

	summary.TotalSelections = len(t.Selections)
	for _, s := range t.Selections {
		summary.Points[s.Dimension] = s.Selected
		switch s.Rule {
		case RuleMajority:
			summary.MajorityCount++
		case RuleHighestSupport:
			summary.HighestSupport++
		case RuleTieBreak:
			summary.TieBreaks++
		}
	}
	summary.ZeroOverride = t.Override != nil
	return summary
}
