// Package testutil provides shared test infrastructure: the golden scenario dataset
// in testdata/scenarios.json and path helpers for the session files it references.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ScenarioSet represents the structure of testdata/scenarios.json.
type ScenarioSet struct {
	Scenarios []Scenario `json:"scenarios"`
}

// Scenario is one golden evaluation: a session file and its expected report.
type Scenario struct {
	Name    string      `json:"name"`
	Session string      `json:"session"` // relative to testdata/
	Expect  Expectation `json:"expect"`
}

// Expectation is the expected outcome of a golden scenario.
type Expectation struct {
	CommunicationScore int            `json:"communication_score"`
	MDMScore           int            `json:"mdm_score"`
	ZeroOverride       bool           `json:"zero_override"`
	TieBreaks          int            `json:"tie_breaks"`
	Dimensions         map[string]int `json:"dimensions"`
}

// TestdataPath resolves elem relative to the repository's testdata directory.
// The path is resolved relative to this source file: grader/internal/testutil/ → testdata/.
func TestdataPath(t *testing.T, elem ...string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	parts := append([]string{filepath.Dir(thisFile), "..", "..", "..", "testdata"}, elem...)
	return filepath.Join(parts...)
}

// LoadScenarios loads the golden scenario dataset.
func LoadScenarios(t *testing.T) *ScenarioSet {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "scenarios.json"))
	if err != nil {
		t.Fatalf("Failed to read golden scenarios: %v", err)
	}
	var set ScenarioSet
	if err := json.Unmarshal(data, &set); err != nil {
		t.Fatalf("Failed to parse golden scenarios: %v", err)
	}
	if len(set.Scenarios) == 0 {
		t.Fatal("golden scenario dataset is empty")
	}
	return &set
}

// SessionPath returns the absolute path of the scenario's session file.
func (s Scenario) SessionPath(t *testing.T) string {
	t.Helper()
	return TestdataPath(t, filepath.FromSlash(s.Session))
}
