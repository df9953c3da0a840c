package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/internal/testutil"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/session"
	"github.com/medsim/case-eval/grader/trace"
)

func loadJob(t *testing.T, path string) Job {
	t.Helper()
	s, err := session.Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	c, err := s.Collaborators(grader.Collaborators{})
	require.NoError(t, err)
	return Job{Input: s.Input(), Collaborators: c}
}

func TestEvaluate_GoldenScenarios(t *testing.T) {
	ev, err := New(rubric.Default(), WithTraceLevel(trace.TraceLevelDecisions), WithSummary())
	require.NoError(t, err)

	for _, sc := range testutil.LoadScenarios(t).Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			job := loadJob(t, sc.SessionPath(t))

			res, err := ev.EvaluateWith(job.Input, job.Collaborators)
			require.NoError(t, err)

			r := res.Report
			assert.Equal(t, sc.Expect.CommunicationScore, r.CommunicationScore, "communication")
			assert.Equal(t, sc.Expect.MDMScore, r.MDMScore, "mdm")
			assert.Equal(t, sc.Expect.ZeroOverride, r.ZeroOverride, "zero override")
			for dim, want := range sc.Expect.Dimensions {
				got, ok := r.Dimensions[grader.Dimension(dim)]
				require.True(t, ok, "dimension %s missing", dim)
				assert.Equal(t, want, got.Points, "dimension %s", dim)
			}
			require.NotNil(t, res.Summary)
			assert.Equal(t, sc.Expect.TieBreaks, res.Summary.TieBreaks, "tie breaks")
			assert.Equal(t, len(grader.Dimensions), res.Summary.TotalSelections)
			assert.Equal(t, sc.Expect.ZeroOverride, res.Summary.ZeroOverride)
		})
	}
}

func TestEvaluate_ZeroOverride_TraceKeepsRawComposites(t *testing.T) {
	// GIVEN an all-acknowledgement transcript with an aligned note
	ev, err := New(rubric.Default(), WithTraceLevel(trace.TraceLevelDecisions))
	require.NoError(t, err)
	job := loadJob(t, testutil.TestdataPath(t, "scenarios", "a_zero_cau.yaml"))

	// WHEN evaluated
	res, err := ev.EvaluateWith(job.Input, job.Collaborators)
	require.NoError(t, err)

	// THEN the trace records the raw MDM composite the override discarded
	require.NotNil(t, res.Trace.Override)
	assert.Equal(t, 0, res.Trace.Override.CommunicationRaw)
	assert.Equal(t, 2, res.Trace.Override.MDMRaw)
	assert.Contains(t, res.Report.Summary, "both scores are 0")
}

func TestEvaluate_Idempotent(t *testing.T) {
	// GIVEN the same input evaluated twice
	ev, err := New(rubric.Default())
	require.NoError(t, err)
	job := loadJob(t, testutil.TestdataPath(t, "scenarios", "c_advanced_late_escalation.yaml"))

	var outputs [2]bytes.Buffer
	for i := range outputs {
		res, err := ev.EvaluateWith(job.Input, job.Collaborators)
		require.NoError(t, err)
		require.NoError(t, res.Report.WriteJSON(&outputs[i]))
	}

	// THEN the reports are byte-identical
	assert.Equal(t, outputs[0].String(), outputs[1].String())
}

func TestEvaluate_TraceLevelNone_NoTrace(t *testing.T) {
	ev, err := New(rubric.Default())
	require.NoError(t, err)
	job := loadJob(t, testutil.TestdataPath(t, "scenarios", "b_intermediate_early_order.yaml"))

	res, err := ev.EvaluateWith(job.Input, job.Collaborators)
	require.NoError(t, err)
	assert.Nil(t, res.Trace)
	assert.Nil(t, res.Summary)
}

func TestEvaluate_ClassifierFailure_FailsWholeRun(t *testing.T) {
	// GIVEN a classifier that fails on the second student message
	calls := 0
	failing := grader.CAUClassifierFunc(func(text string) (grader.Classification, error) {
		calls++
		if calls == 2 {
			return grader.Classification{}, errors.New("model timeout")
		}
		return grader.Classification{IsQuestion: true}, nil
	})
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	ev, err := New(rubric.Default(), WithCollaborators(grader.Collaborators{Classifier: failing}), WithMetrics(metrics))
	require.NoError(t, err)

	in := grader.Input{
		ID: "timeout",
		Messages: []grader.Message{
			{Role: grader.RoleStudent, Text: "What is the heart rate?", Position: 1},
			{Role: grader.RoleStudent, Text: "What is the blood pressure?", Position: 2},
		},
		Case: grader.CaseContext{Difficulty: grader.DifficultyBeginner},
	}

	// WHEN evaluated
	res, err := ev.Evaluate(in)

	// THEN no report is produced and the error names the collaborator and message
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, grader.ErrClassificationUnavailable)
	var ce *grader.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, grader.CollaboratorClassifier, ce.Collaborator)
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.evaluations.WithLabelValues(OutcomeClassificationError)))
}

func TestEvaluate_UnknownDifficulty_ConfigError(t *testing.T) {
	ev, err := New(rubric.Default())
	require.NoError(t, err)

	_, err = ev.Evaluate(grader.Input{Case: grader.CaseContext{Difficulty: "expert"}})

	assert.ErrorIs(t, err, grader.ErrConfiguration)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"unknown tie-break", []Option{WithTieBreak("coin-flip")}},
		{"unknown trace level", []Option{WithTraceLevel("verbose")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(rubric.Default(), tt.opts...)
			assert.Nil(t, ev)
			assert.Error(t, err)
		})
	}
	_, err := New(nil)
	assert.ErrorIs(t, err, grader.ErrConfiguration)
}

func TestEvaluate_PreferHigherTieBreak(t *testing.T) {
	// GIVEN the contraindicated scenario whose information sharing support is an even split
	ev, err := New(rubric.Default(), WithTieBreak("prefer-higher"))
	require.NoError(t, err)
	job := loadJob(t, testutil.TestdataPath(t, "scenarios", "d_beginner_contraindicated.yaml"))

	// WHEN the tie is resolved upward
	res, err := ev.EvaluateWith(job.Input, job.Collaborators)
	require.NoError(t, err)

	// THEN information sharing takes the higher entry and communication rises by one
	assert.Equal(t, 2, res.Report.Dimensions[grader.InformationSharing].Points)
	assert.Equal(t, 3, res.Report.CommunicationScore)
}

func TestEvaluate_UnstableNeverEscalated_NoBetterThanLate(t *testing.T) {
	// GIVEN the late-escalation scenario and a copy with the escalation order removed;
	// every other efficiency band of the copy is clean
	ev, err := New(rubric.Default())
	require.NoError(t, err)
	late := loadJob(t, testutil.TestdataPath(t, "scenarios", "c_advanced_late_escalation.yaml"))
	never := loadJob(t, testutil.TestdataPath(t, "scenarios", "c_advanced_late_escalation.yaml"))
	var kept []grader.Order
	for _, o := range never.Input.Orders {
		if o.Category != grader.CategoryEscalation {
			kept = append(kept, o)
		}
	}
	never.Input.Orders = kept

	// WHEN both are evaluated
	lateRes, err := ev.EvaluateWith(late.Input, late.Collaborators)
	require.NoError(t, err)
	neverRes, err := ev.EvaluateWith(never.Input, never.Collaborators)
	require.NoError(t, err)

	// THEN never escalating costs the same major deduction as escalating late
	assert.Equal(t, -2, lateRes.Report.Dimensions[grader.EfficiencyDeduction].Points)
	assert.Equal(t, -2, neverRes.Report.Dimensions[grader.EfficiencyDeduction].Points)
}

func TestEvaluateBatch_PreservesOrder(t *testing.T) {
	// GIVEN every golden scenario as a batch
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	ev, err := New(rubric.Default(), WithMetrics(metrics))
	require.NoError(t, err)

	scenarios := testutil.LoadScenarios(t).Scenarios
	jobs := make([]Job, len(scenarios))
	for i, sc := range scenarios {
		jobs[i] = loadJob(t, sc.SessionPath(t))
	}

	// WHEN evaluated with fewer workers than jobs
	results, err := ev.EvaluateBatch(context.Background(), jobs, 2)
	require.NoError(t, err)

	// THEN results line up with their inputs and every run is counted
	require.Len(t, results, len(jobs))
	for i, sc := range scenarios {
		assert.Equal(t, sc.Expect.CommunicationScore, results[i].Report.CommunicationScore, sc.Name)
		assert.Equal(t, sc.Expect.MDMScore, results[i].Report.MDMScore, sc.Name)
	}
	assert.Equal(t, float64(len(jobs)), promtestutil.ToFloat64(metrics.evaluations.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.zeroOverrides))
	assert.Equal(t, len(jobs)*2, sampleCount(t, reg, "case_eval_engine_composite_score"))
}

func TestEvaluateBatch_FirstFailureReturned(t *testing.T) {
	ev, err := New(rubric.Default())
	require.NoError(t, err)

	good := loadJob(t, testutil.TestdataPath(t, "scenarios", "e_aligned_note.yaml"))
	bad := good
	bad.Input.ID = "bad"
	bad.Input.Case.Difficulty = "expert"

	results, err := ev.EvaluateBatch(context.Background(), []Job{good, bad, good}, 1)

	assert.Nil(t, results)
	require.Error(t, err)
	assert.ErrorIs(t, err, grader.ErrConfiguration)
	assert.Contains(t, err.Error(), "jobs[1]")
}

func TestEvaluateBatch_CancelledContext(t *testing.T) {
	ev, err := New(rubric.Default())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := loadJob(t, testutil.TestdataPath(t, "scenarios", "e_aligned_note.yaml"))
	_, err = ev.EvaluateBatch(ctx, []Job{job}, 1)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMustNewMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	second.observeOutcome(OutcomeOK)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(first.evaluations.WithLabelValues(OutcomeOK)))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.observeOutcome(OutcomeOK)
	m.observeReport(nil)
	// no panic
}

// sampleCount sums the histogram sample counts of a metric family.
func sampleCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0
		for _, m := range f.GetMetric() {
			total += int(m.GetHistogram().GetSampleCount())
		}
		return total
	}
	t.Fatalf("metric family %s not gathered", name)
	return 0
}

func ExampleEvaluator_Evaluate() {
	ev, err := New(rubric.Default())
	if err != nil {
		panic(err)
	}
	res, err := ev.Evaluate(grader.Input{
		Messages: []grader.Message{{Role: grader.RoleStudent, Text: "Okay.", Position: 1}},
		Case:     grader.CaseContext{Difficulty: grader.DifficultyBeginner},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Report.CommunicationScore, res.Report.MDMScore, res.Report.ZeroOverride)
	// Output: 0 0 true
}
