// Package report assembles the structured feedback report from selected dimension
// scores. It performs no scoring.
package report

import (
	"fmt"
	"strings"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/score"
)

// DimensionResult is one dimension's line of the report.
type DimensionResult struct {
	Points   int    `json:"points"`
	Criteria string `json:"criteria"`
	Feedback string `json:"feedback"`
}

// ScoreReport is the outbound contract of an evaluation run. Never mutated after Assemble.
type ScoreReport struct {
	CommunicationScore int                                  `json:"communicationScore"`
	MDMScore           int                                  `json:"mdmScore"`
	Dimensions         map[grader.Dimension]DimensionResult `json:"dimensions"`
	Summary            string                               `json:"summary"`
	Recommendations    []string                             `json:"recommendations"`
	LearningObjectives []string                             `json:"learningObjectives"`
	ZeroOverride       bool                                 `json:"zeroOverride"`
	RubricVersion      string                               `json:"rubricVersion,omitempty"`
}

// Assemble maps each dimension score to its registry text. A score whose point value
// has no registry entry is a configuration error.
func Assemble(reg *rubric.Registry, out *score.Outcome, cc grader.CaseContext) (*ScoreReport, error) {
	r := &ScoreReport{
		CommunicationScore: out.Composites.Communication,
		MDMScore:           out.Composites.MDM,
		Dimensions:         make(map[grader.Dimension]DimensionResult, len(out.Scores)),
		Recommendations:    []string{},
		LearningObjectives: learningObjectives(cc),
		ZeroOverride:       out.Composites.ZeroOverride,
		RubricVersion:      reg.Version(),
	}
	seen := make(map[string]bool)
	for _, s := range out.Scores {
		entry, err := reg.Lookup(s.Dimension, s.Points)
		if err != nil {
			return nil, err
		}
		r.Dimensions[s.Dimension] = DimensionResult{
			Points:   s.Points,
			Criteria: entry.Criteria,
			Feedback: entry.Feedback,
		}
		if entry.Recommendation != "" && !seen[entry.Recommendation] {
			seen[entry.Recommendation] = true
			r.Recommendations = append(r.Recommendations, entry.Recommendation)
		}
	}
	for _, dim := range grader.Dimensions {
		if _, ok := r.Dimensions[dim]; !ok {
			return nil, &grader.ConfigError{Dimension: dim, Reason: "no score selected"}
		}
	}
	r.Summary = summarize(r, cc)
	return r, nil
}

func learningObjectives(cc grader.CaseContext) []string {
	objectives := make([]string, 0, len(cc.CaseGoals)+1)
	if cc.ExpectedDiagnosis != "" {
		objectives = append(objectives, fmt.Sprintf("Recognize and manage %s.", cc.ExpectedDiagnosis))
	}
	for _, g := range cc.CaseGoals {
		if g = strings.TrimSpace(g); g != "" {
			objectives = append(objectives, g)
		}
	}
	return objectives
}

func summarize(r *ScoreReport, cc grader.CaseContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Communication %d/%d, Medical Decision Making %d/%d.",
		r.CommunicationScore, grader.CompositeMax, r.MDMScore, grader.CompositeMax)
	if r.ZeroOverride {
		b.WriteString(" No clinical questions, instructions or orders were sent, so both scores are 0.")
		return b.String()
	}
	if cc.Difficulty != "" {
		fmt.Fprintf(&b, " Case difficulty: %s.", cc.Difficulty)
	}
	switch {
	case r.CommunicationScore >= 4 && r.MDMScore >= 4:
		b.WriteString(" Strong performance overall.")
	case r.CommunicationScore <= 2 && r.MDMScore <= 2:
		b.WriteString(" Significant room for improvement in both communication and decision making.")
	case r.CommunicationScore < r.MDMScore:
		b.WriteString(" Decision making was stronger than communication.")
	case r.MDMScore < r.CommunicationScore:
		b.WriteString(" Communication was stronger than decision making.")
	default:
		b.WriteString(" Communication and decision making were balanced.")
	}
	return b.String()
}
