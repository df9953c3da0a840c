package rubric

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medsim/case-eval/grader"
)

//go:embed default_rubric.yaml
var defaultRubricYAML []byte

// Bundle is the YAML form of a rubric. It is validated and frozen into a Registry;
// scoring code never reads a Bundle directly.
type Bundle struct {
	Version            string                       `yaml:"version"`
	Dimensions         map[string][]EntryConfig     `yaml:"dimensions"`
	EfficiencyProfiles map[string]EfficiencyProfile `yaml:"efficiency_profiles"`
	SafetyProfiles     map[string]SafetyProfile     `yaml:"safety_profiles"`
	OrderThresholds    OrderThresholds              `yaml:"order_thresholds"`
}

// EntryConfig is one achievable point value of a dimension.
type EntryConfig struct {
	Points         int    `yaml:"points"`
	Condition      string `yaml:"condition"`
	Criteria       string `yaml:"criteria"`
	Feedback       string `yaml:"feedback"`
	Recommendation string `yaml:"recommendation,omitempty"`
}

// Band holds the inclusive upper bounds of the no-deduction and minor-deduction ranges.
// A signal above Minor is a major deduction.
type Band struct {
	None  int `yaml:"none"`
	Minor int `yaml:"minor"`
}

// Severity returns 0, -1 or -2 for a signal value.
func (b Band) Severity(v int) int {
	switch {
	case v <= b.None:
		return 0
	case v <= b.Minor:
		return -1
	default:
		return -2
	}
}

// EfficiencyProfile holds the difficulty-specific efficiency thresholds.
// Ordinals count student CAUs sent at or before an order.
type EfficiencyProfile struct {
	CAUCount             Band `yaml:"cau_count"`
	FirstMeaningfulOrder Band `yaml:"first_meaningful_order"`
	QuestionStreak       Band `yaml:"question_streak"`
	// EscalationBy is the latest CAU ordinal for an escalation or bedside order when the
	// patient is unstable. Zero disables the rule.
	EscalationBy int `yaml:"escalation_by"`
}

// SafetyProfile holds the difficulty-specific safety tolerances.
type SafetyProfile struct {
	RedundantTolerance int `yaml:"redundant_tolerance"`
	ShouldntTolerance  int `yaml:"shouldnt_tolerance"`
}

// OrderThresholds drive Labs/Orders Quality.
type OrderThresholds struct {
	NearCompleteMust     float64 `yaml:"near_complete_must"`
	GoodCoreMust         float64 `yaml:"good_core_must"`
	PartialMust          float64 `yaml:"partial_must"`
	MostlyCompleteShould float64 `yaml:"mostly_complete_should"`
	SparingCould         int     `yaml:"sparing_could"`
}

// expectedPoints is the exact point range of every dimension.
var expectedPoints = map[grader.Dimension][]int{
	grader.InformationSharing:      {2, 1, 0},
	grader.ResponsiveCommunication: {3, 2, 1, 0},
	grader.EfficiencyDeduction:     {0, -1, -2},
	grader.LabsOrdersQuality:       {3, 2, 1, 0},
	grader.NoteThoughtProcess:      {2, 1, 0},
	grader.SafetyDeduction:         {0, -1, -2},
}

// PointRange returns the achievable point values of a dimension, highest first.
func PointRange(dim grader.Dimension) []int {
	return append([]int(nil), expectedPoints[dim]...)
}

// LoadBundle reads and parses a YAML rubric file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rubric: %w", err)
	}
	return ParseBundle(data)
}

// ParseBundle parses YAML rubric data with strict field checking.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&b); err != nil {
		return nil, fmt.Errorf("parsing rubric: %w", err)
	}
	return &b, nil
}

// DefaultBundle returns a fresh copy of the embedded default rubric.
func DefaultBundle() *Bundle {
	b, err := ParseBundle(defaultRubricYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default rubric is invalid: %v", err))
	}
	return b
}

// Validate checks dimensions, point ranges, texts, profiles and thresholds.
// Every failure is a *grader.ConfigError.
func (b *Bundle) Validate() error {
	for name := range b.Dimensions {
		if !grader.IsValidDimension(name) {
			return &grader.ConfigError{Reason: fmt.Sprintf("unknown dimension %q", name)}
		}
	}
	for _, dim := range grader.Dimensions {
		if err := validateEntries(dim, b.Dimensions[string(dim)]); err != nil {
			return err
		}
	}
	for name := range b.EfficiencyProfiles {
		if !grader.IsValidDifficulty(name) {
			return &grader.ConfigError{Dimension: grader.EfficiencyDeduction, Reason: fmt.Sprintf("unknown difficulty profile %q", name)}
		}
	}
	for name := range b.SafetyProfiles {
		if !grader.IsValidDifficulty(name) {
			return &grader.ConfigError{Dimension: grader.SafetyDeduction, Reason: fmt.Sprintf("unknown difficulty profile %q", name)}
		}
	}
	for _, d := range grader.ValidDifficulties() {
		ep, ok := b.EfficiencyProfiles[d]
		if !ok {
			return &grader.ConfigError{Dimension: grader.EfficiencyDeduction, Reason: fmt.Sprintf("missing profile for difficulty %q", d)}
		}
		if err := ep.validate(d); err != nil {
			return err
		}
		sp, ok := b.SafetyProfiles[d]
		if !ok {
			return &grader.ConfigError{Dimension: grader.SafetyDeduction, Reason: fmt.Sprintf("missing profile for difficulty %q", d)}
		}
		if sp.RedundantTolerance < 0 || sp.ShouldntTolerance < 0 {
			return &grader.ConfigError{Dimension: grader.SafetyDeduction, Reason: fmt.Sprintf("%s: tolerances must be non-negative", d)}
		}
	}
	return b.OrderThresholds.validate()
}

func validateEntries(dim grader.Dimension, entries []EntryConfig) error {
	want := expectedPoints[dim]
	if len(entries) == 0 {
		return &grader.ConfigError{Dimension: dim, Reason: "no entries defined"}
	}
	if len(entries) != len(want) {
		return &grader.ConfigError{Dimension: dim, Reason: fmt.Sprintf("expected %d entries for points %v, got %d", len(want), want, len(entries))}
	}
	seen := make(map[int]bool, len(entries))
	for i, e := range entries {
		prefix := fmt.Sprintf("entries[%d]", i)
		if !contains(want, e.Points) {
			return grader.NewEntryError(dim, e.Points, fmt.Sprintf("%s: point value outside range %v", prefix, want))
		}
		if seen[e.Points] {
			return grader.NewEntryError(dim, e.Points, fmt.Sprintf("%s: duplicate point value", prefix))
		}
		seen[e.Points] = true
		if e.Condition == "" {
			return grader.NewEntryError(dim, e.Points, prefix+": condition is required")
		}
		if e.Criteria == "" || e.Feedback == "" {
			return grader.NewEntryError(dim, e.Points, prefix+": criteria and feedback are required")
		}
	}
	return nil
}

func (p EfficiencyProfile) validate(difficulty string) error {
	bands := []struct {
		name string
		band Band
	}{
		{"cau_count", p.CAUCount},
		{"first_meaningful_order", p.FirstMeaningfulOrder},
		{"question_streak", p.QuestionStreak},
	}
	for _, b := range bands {
		if b.band.None < 0 || b.band.Minor < b.band.None {
			return &grader.ConfigError{
				Dimension: grader.EfficiencyDeduction,
				Reason:    fmt.Sprintf("%s.%s: need 0 <= none <= minor, got none=%d minor=%d", difficulty, b.name, b.band.None, b.band.Minor),
			}
		}
	}
	if p.EscalationBy < 0 {
		return &grader.ConfigError{Dimension: grader.EfficiencyDeduction, Reason: fmt.Sprintf("%s.escalation_by must be non-negative, got %d", difficulty, p.EscalationBy)}
	}
	return nil
}

func (t OrderThresholds) validate() error {
	fractions := []struct {
		name string
		v    float64
	}{
		{"near_complete_must", t.NearCompleteMust},
		{"good_core_must", t.GoodCoreMust},
		{"partial_must", t.PartialMust},
		{"mostly_complete_should", t.MostlyCompleteShould},
	}
	for _, f := range fractions {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 1 {
			return &grader.ConfigError{Dimension: grader.LabsOrdersQuality, Reason: fmt.Sprintf("%s must be in [0,1], got %v", f.name, f.v)}
		}
	}
	if !(t.PartialMust <= t.GoodCoreMust && t.GoodCoreMust <= t.NearCompleteMust) {
		return &grader.ConfigError{Dimension: grader.LabsOrdersQuality, Reason: "need partial_must <= good_core_must <= near_complete_must"}
	}
	if t.SparingCould < 0 {
		return &grader.ConfigError{Dimension: grader.LabsOrdersQuality, Reason: fmt.Sprintf("sparing_could must be non-negative, got %d", t.SparingCould)}
	}
	return nil
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
