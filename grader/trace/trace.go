// Package trace records how every dimension score was selected, so a grade can be
// audited and reproduced by hand.
package trace

import (
	"github.com/google/uuid"
)

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every dimension selection and the zero override.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Selection rules recorded on each SelectionRecord.
const (
	RuleMajority       = "majority"        // a qualifying entry was supported by more than half
	RuleHighestSupport = "highest-support" // no majority; the single best-supported entry won
	RuleTieBreak       = "tie-break"       // no majority and several entries shared the best support
)

// CandidateRecord is one rubric entry considered for a dimension.
type CandidateRecord struct {
	Points    int     `json:"points"`
	Condition string  `json:"condition"`
	Holds     bool    `json:"holds"`
	Support   float64 `json:"support"`
}

// SelectionRecord captures one dimension's selection.
type SelectionRecord struct {
	Dimension  string            `json:"dimension"`
	Candidates []CandidateRecord `json:"candidates"`
	Selected   int               `json:"selected"`
	Rule       string            `json:"rule"`
	Policy     string            `json:"policy,omitempty"` // tie-break policy name when Rule is RuleTieBreak
}

// OverrideRecord captures the zero-CAU override.
type OverrideRecord struct {
	CommunicationRaw int `json:"communication_raw"`
	MDMRaw           int `json:"mdm_raw"`
}

// EvaluationTrace collects decision records during one evaluation run.
type EvaluationTrace struct {
	RunID      string            `json:"run_id"`
	InputID    string            `json:"input_id"`
	Selections []SelectionRecord `json:"selections"`
	Override   *OverrideRecord   `json:"override,omitempty"`
}

// NewEvaluationTrace creates an EvaluationTrace ready for recording.
func NewEvaluationTrace(inputID string) *EvaluationTrace {
	return &EvaluationTrace{
		RunID:      uuid.NewString(),
		InputID:    inputID,
		Selections: make([]SelectionRecord, 0, 6),
	}
}

// RecordSelection appends a dimension selection. Safe on a nil trace.
func (t *EvaluationTrace) RecordSelection(record SelectionRecord) {
	if t == nil {
		return
	}
	t.Selections = append(t.Selections, record)
}

// RecordOverride marks that both composites were forced to zero. Safe on a nil trace.
func (t *EvaluationTrace) RecordOverride(record OverrideRecord) {
	if t == nil {
		return
	}
	t.Override = &record
}
