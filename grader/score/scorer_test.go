package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/classify"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/trace"
)

// baseSignals is a clean intermediate run: three CAUs, an early meaningful order,
// complete coverage and an aligned note.
func baseSignals() *classify.Signals {
	return &classify.Signals{
		Difficulty:                  grader.DifficultyIntermediate,
		CAUCount:                    3,
		HasMeaningfulOrder:          true,
		FirstMeaningfulOrderOrdinal: 1,
		EscalationOrdinal:           4,
		MustCoverage:                1,
		ShouldCoverage:              1,
		Alignment:                   grader.AlignmentAligned,
	}
}

func newScorer(t *testing.T, policy string) *Scorer {
	t.Helper()
	sc, err := New(rubric.Default(), policy)
	require.NoError(t, err)
	return sc
}

func mustScore(t *testing.T, sc *Scorer, s *classify.Signals) *Outcome {
	t.Helper()
	out, err := sc.Score(s, nil)
	require.NoError(t, err)
	return out
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, want int }{
		{-3, 0}, {0, 0}, {3, 3}, {5, 5}, {6, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.v, grader.CompositeMin, grader.CompositeMax), "v=%d", tt.v)
	}
}

func TestCompose(t *testing.T) {
	scores := []DimensionScore{
		{Dimension: grader.InformationSharing, Points: 2},
		{Dimension: grader.ResponsiveCommunication, Points: 1},
		{Dimension: grader.EfficiencyDeduction, Points: -2},
		{Dimension: grader.LabsOrdersQuality, Points: 0},
		{Dimension: grader.NoteThoughtProcess, Points: 0},
		{Dimension: grader.SafetyDeduction, Points: -2},
	}

	c := Compose(scores, false)
	assert.Equal(t, 1, c.CommunicationRaw)
	assert.Equal(t, -2, c.MDMRaw)
	assert.Equal(t, 1, c.Communication)
	assert.Equal(t, 0, c.MDM, "negative raw MDM truncates to zero")
	assert.False(t, c.ZeroOverride)

	// BC-2: the zero-CAU override ignores the dimension sums
	scores[3].Points = 3
	scores[4].Points = 2
	c = Compose(scores, true)
	assert.True(t, c.ZeroOverride)
	assert.Equal(t, 0, c.Communication)
	assert.Equal(t, 0, c.MDM)
	assert.Equal(t, 3, c.MDMRaw)
}

func TestScore_CleanRun(t *testing.T) {
	out := mustScore(t, newScorer(t, DefaultTieBreak), baseSignals())

	assert.Equal(t, 0, out.Points(grader.InformationSharing))
	assert.Equal(t, 0, out.Points(grader.ResponsiveCommunication))
	assert.Equal(t, 0, out.Points(grader.EfficiencyDeduction))
	assert.Equal(t, 3, out.Points(grader.LabsOrdersQuality))
	assert.Equal(t, 2, out.Points(grader.NoteThoughtProcess))
	assert.Equal(t, 0, out.Points(grader.SafetyDeduction))
	assert.Equal(t, 5, out.Composites.MDM)
	require.Len(t, out.Scores, len(grader.Dimensions))
	for i, dim := range grader.Dimensions {
		assert.Equal(t, dim, out.Scores[i].Dimension)
	}
}

func TestScore_InformationSharing_Support(t *testing.T) {
	tests := []struct {
		name      string
		questions int
		highYield int
		policy    string
		want      int
	}{
		{"no questions", 0, 0, DefaultTieBreak, 0},
		{"majority high-yield", 6, 5, DefaultTieBreak, 2},
		{"majority unfocused", 4, 1, DefaultTieBreak, 1},
		{"even split prefers lower", 2, 1, "prefer-lower", 1},
		{"even split prefers higher", 2, 1, "prefer-higher", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			s.QuestionCAUs, s.HighYieldQuestions = tt.questions, tt.highYield
			out := mustScore(t, newScorer(t, tt.policy), s)
			assert.Equal(t, tt.want, out.Points(grader.InformationSharing))
		})
	}
}

func TestScore_ResponsiveCommunication(t *testing.T) {
	tests := []struct {
		name                       string
		withRationale, closed, open int
		want                       int
	}{
		{"no directives", 0, 0, 0, 0},
		{"all closed loop with rationale", 3, 0, 0, 3},
		{"mostly closed loop", 1, 3, 0, 2},
		{"mostly open loop", 0, 1, 3, 1},
		{"three-way split picks best supported", 2, 1, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			s.ClosedLoopWithRationale, s.ClosedLoopDirectives, s.OpenLoopDirectives = tt.withRationale, tt.closed, tt.open
			s.Directives = tt.withRationale + tt.closed + tt.open
			out := mustScore(t, newScorer(t, DefaultTieBreak), s)
			assert.Equal(t, tt.want, out.Points(grader.ResponsiveCommunication))
		})
	}
}

func TestScore_Efficiency(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *classify.Signals)
		want   int
	}{
		{"within bands", func(s *classify.Signals) {}, 0},
		{"cau count in minor band", func(s *classify.Signals) { s.CAUCount = 12 }, -1},
		{"cau count past minor band", func(s *classify.Signals) { s.CAUCount = 16 }, -2},
		{"first order late", func(s *classify.Signals) { s.FirstMeaningfulOrderOrdinal = 6 }, -1},
		{"long question streak", func(s *classify.Signals) { s.QuestionStreak = 8 }, -2},
		{"worst band wins", func(s *classify.Signals) { s.CAUCount = 12; s.QuestionStreak = 8 }, -2},
		{"unstable patient escalated late", func(s *classify.Signals) {
			s.Unstable = true
			s.CAUCount = 9
			s.HasEscalation = true
			s.EscalationOrdinal = 9
		}, -2},
		{"unstable patient escalated in time", func(s *classify.Signals) {
			s.Unstable = true
			s.HasEscalation = true
			s.EscalationOrdinal = 3
		}, 0},
		{"unstable patient never escalated", func(s *classify.Signals) {
			s.Unstable = true
			s.HasEscalation = false
			s.EscalationOrdinal = s.CAUCount + 1
		}, -2},
		{"stable patient never escalated", func(s *classify.Signals) {
			s.HasEscalation = false
			s.EscalationOrdinal = s.CAUCount + 1
		}, 0},
		{"no CAUs is not penalized", func(s *classify.Signals) {
			s.NoCAUs = true
			s.CAUCount = 0
			s.FirstMeaningfulOrderOrdinal = 99
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			tt.mutate(s)
			out := mustScore(t, newScorer(t, DefaultTieBreak), s)
			assert.Equal(t, tt.want, out.Points(grader.EfficiencyDeduction))
		})
	}
}

func TestScore_LabsOrdersQuality(t *testing.T) {
	tests := []struct {
		name         string
		must, should float64
		could        int
		want         int
	}{
		{"comprehensive", 1, 1, 0, 3},
		{"too many could orders", 1, 1, 3, 2},
		{"should coverage short", 1, 0, 0, 2},
		{"good core", 0.8, 1, 0, 2},
		{"partial core", 0.5, 1, 0, 1},
		{"minimal", 0.2, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			s.MustCoverage, s.ShouldCoverage, s.CouldCount = tt.must, tt.should, tt.could
			out := mustScore(t, newScorer(t, DefaultTieBreak), s)
			assert.Equal(t, tt.want, out.Points(grader.LabsOrdersQuality))
		})
	}
}

func TestScore_LabsOrdersQuality_MonotonicInMustCoverage(t *testing.T) {
	sc := newScorer(t, DefaultTieBreak)
	prev := -1
	for must := 0; must <= 20; must++ {
		s := baseSignals()
		s.MustCoverage = float64(must) / 20
		got := mustScore(t, sc, s).Points(grader.LabsOrdersQuality)
		assert.GreaterOrEqual(t, got, prev, "must coverage %.2f", s.MustCoverage)
		prev = got
	}
}

func TestScore_InformationSharing_MonotonicInHighYield(t *testing.T) {
	// Adding one high-yield question never lowers Information Sharing.
	sc := newScorer(t, DefaultTieBreak)
	for q := 0; q <= 6; q++ {
		for hy := 0; hy <= q; hy++ {
			before := baseSignals()
			before.QuestionCAUs, before.HighYieldQuestions = q, hy
			after := baseSignals()
			after.QuestionCAUs, after.HighYieldQuestions = q+1, hy+1

			b := mustScore(t, sc, before).Points(grader.InformationSharing)
			a := mustScore(t, sc, after).Points(grader.InformationSharing)
			assert.GreaterOrEqual(t, a, b, "questions=%d high-yield=%d", q, hy)
		}
	}
}

func TestScore_Safety(t *testing.T) {
	redundant := []grader.Order{{Name: "cbc", Category: grader.CategoryLab, Tier: grader.TierMust, Position: 4}}
	harmful := []grader.Order{{Name: "tpa", Category: grader.CategoryMedication, Tier: grader.TierMustnt, Position: 2}}
	tests := []struct {
		name       string
		difficulty grader.Difficulty
		mutate     func(s *classify.Signals)
		want       int
	}{
		{"clean", grader.DifficultyIntermediate, func(s *classify.Signals) {}, 0},
		{"redundant order", grader.DifficultyIntermediate, func(s *classify.Signals) { s.Redundant = redundant }, -1},
		{"redundant order tolerated for beginners", grader.DifficultyBeginner, func(s *classify.Signals) { s.Redundant = redundant }, 0},
		{"one shouldnt order tolerated at intermediate", grader.DifficultyIntermediate, func(s *classify.Signals) { s.ShouldntCount = 1 }, 0},
		{"one shouldnt order at advanced", grader.DifficultyAdvanced, func(s *classify.Signals) { s.ShouldntCount = 1 }, -1},
		{"contraindicated order", grader.DifficultyBeginner, func(s *classify.Signals) { s.Contraindicated = harmful }, -2},
		{"contraindicated dominates redundant", grader.DifficultyIntermediate, func(s *classify.Signals) {
			s.Redundant = redundant
			s.ShouldntCount = 3
			s.Contraindicated = harmful
		}, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			s.Difficulty = tt.difficulty
			tt.mutate(s)
			out := mustScore(t, newScorer(t, DefaultTieBreak), s)
			assert.Equal(t, tt.want, out.Points(grader.SafetyDeduction))
		})
	}
}

func TestScore_NoteThoughtProcess(t *testing.T) {
	for a, want := range map[grader.Alignment]int{
		grader.AlignmentAligned: 2,
		grader.AlignmentPartial: 1,
		grader.AlignmentNone:    0,
	} {
		s := baseSignals()
		s.Alignment = a
		assert.Equal(t, want, mustScore(t, newScorer(t, DefaultTieBreak), s).Points(grader.NoteThoughtProcess), "alignment %s", a)
	}
}

func TestScore_UnknownDifficulty(t *testing.T) {
	s := baseSignals()
	s.Difficulty = "expert"
	_, err := newScorer(t, DefaultTieBreak).Score(s, nil)
	assert.ErrorIs(t, err, grader.ErrConfiguration)
}

func TestScore_RecordsTrace(t *testing.T) {
	// GIVEN an even split of high-yield questions and no CAUs otherwise
	s := baseSignals()
	s.QuestionCAUs, s.HighYieldQuestions = 2, 1
	tr := trace.NewEvaluationTrace("trace")

	// WHEN scored
	_, err := newScorer(t, DefaultTieBreak).Score(s, tr)
	require.NoError(t, err)

	// THEN each dimension is recorded once and the tie names its policy
	require.Len(t, tr.Selections, len(grader.Dimensions))
	is := tr.Selections[0]
	assert.Equal(t, string(grader.InformationSharing), is.Dimension)
	assert.Equal(t, trace.RuleTieBreak, is.Rule)
	assert.Equal(t, "prefer-lower", is.Policy)
	assert.Equal(t, 1, is.Selected)
	assert.Len(t, is.Candidates, 3)
	assert.Nil(t, tr.Override)
}

func TestScore_ZeroCAUsRecordsOverride(t *testing.T) {
	s := baseSignals()
	s.NoCAUs, s.CAUCount = true, 0
	tr := trace.NewEvaluationTrace("override")

	out, err := newScorer(t, DefaultTieBreak).Score(s, tr)

	require.NoError(t, err)
	assert.True(t, out.Composites.ZeroOverride)
	require.NotNil(t, tr.Override)
	assert.Equal(t, 5, tr.Override.MDMRaw)
}

func TestNew_UnknownPolicy(t *testing.T) {
	_, err := New(rubric.Default(), "coin-flip")
	assert.ErrorIs(t, err, grader.ErrConfiguration)
}

func TestNew_UnknownCondition(t *testing.T) {
	b := rubric.DefaultBundle()
	b.Dimensions["information_sharing"][0].Condition = "questions.vibes"
	reg, err := rubric.NewRegistry(b)
	require.NoError(t, err)

	_, err = New(reg, DefaultTieBreak)

	require.Error(t, err)
	assert.ErrorIs(t, err, grader.ErrConfiguration)
	assert.Contains(t, err.Error(), "questions.vibes")
}

func TestNew_RejectsIncompleteConditionFamilies(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *rubric.Bundle)
		wantDim grader.Dimension
		wantMsg string
	}{
		{
			name: "condition of another dimension",
			mutate: func(b *rubric.Bundle) {
				for i := range b.Dimensions["information_sharing"] {
					b.Dimensions["information_sharing"][i].Condition = "note.aligned"
				}
			},
			wantDim: grader.InformationSharing,
			wantMsg: `condition "note.aligned" scores note_thought_process`,
		},
		{
			name: "family member unreferenced",
			mutate: func(b *rubric.Bundle) {
				b.Dimensions["safety_deduction"][2].Condition = b.Dimensions["safety_deduction"][1].Condition
			},
			wantDim: grader.SafetyDeduction,
			wantMsg: "no entry uses condition",
		},
		{
			name: "empty-transcript condition dropped",
			mutate: func(b *rubric.Bundle) {
				b.Dimensions["responsive_communication"][3].Condition = "directives.open_loop"
			},
			wantDim: grader.ResponsiveCommunication,
			wantMsg: `"directives.none"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a bundle that passes structural validation
			b := rubric.DefaultBundle()
			tt.mutate(b)
			reg, err := rubric.NewRegistry(b)
			require.NoError(t, err)

			// WHEN a scorer is built from it
			_, err = New(reg, DefaultTieBreak)

			// THEN it is rejected up front instead of failing a later evaluation
			require.Error(t, err)
			assert.ErrorIs(t, err, grader.ErrConfiguration)
			var ce *grader.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantDim, ce.Dimension)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConditionFamilies_CoverEveryCondition(t *testing.T) {
	for _, name := range ValidConditionNames() {
		_, ok := conditionDimension[name]
		assert.True(t, ok, "condition %s belongs to no dimension", name)
	}
	assert.Len(t, conditionFamilies, len(grader.Dimensions))
}

func TestDefaultRubric_ReferencesOnlyKnownConditions(t *testing.T) {
	for _, name := range rubric.Default().Conditions() {
		assert.True(t, IsValidCondition(name), "condition %s", name)
	}
}

func TestTieBreakPolicies(t *testing.T) {
	tied := []Candidate{{Points: 2, Support: 0.5}, {Points: 0, Support: 0.5}, {Points: 1, Support: 0.5}}
	assert.Equal(t, 0, PreferLower{}.Choose(tied).Points)
	assert.Equal(t, 2, PreferHigher{}.Choose(tied).Points)
	assert.Equal(t, []string{"prefer-higher", "prefer-lower"}, ValidTieBreakPolicies())
	assert.Equal(t, "prefer-lower", NewTieBreakPolicy("").Name())
	assert.Panics(t, func() { NewTieBreakPolicy("coin-flip") })
}
