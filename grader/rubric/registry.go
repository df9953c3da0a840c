// Package rubric holds the Rubric Registry: per-dimension scoring entries and the
// difficulty-specific thresholds. A Registry is immutable once built and safe to
// share across concurrent evaluations.
package rubric

import (
	"fmt"
	"sort"

	"github.com/medsim/case-eval/grader"
)

// Entry is one achievable point value of a dimension.
type Entry struct {
	Dimension      grader.Dimension
	Points         int
	Condition      string
	Criteria       string
	Feedback       string
	Recommendation string
}

// Registry is the validated, read-only form of a rubric.
type Registry struct {
	version    string
	entries    map[grader.Dimension][]Entry // highest points first
	efficiency map[grader.Difficulty]EfficiencyProfile
	safety     map[grader.Difficulty]SafetyProfile
	orders     OrderThresholds
}

// NewRegistry validates a bundle and freezes it.
func NewRegistry(b *Bundle) (*Registry, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		version:    b.Version,
		entries:    make(map[grader.Dimension][]Entry, len(grader.Dimensions)),
		efficiency: make(map[grader.Difficulty]EfficiencyProfile, len(b.EfficiencyProfiles)),
		safety:     make(map[grader.Difficulty]SafetyProfile, len(b.SafetyProfiles)),
		orders:     b.OrderThresholds,
	}
	for _, dim := range grader.Dimensions {
		cfgs := b.Dimensions[string(dim)]
		entries := make([]Entry, 0, len(cfgs))
		for _, c := range cfgs {
			entries = append(entries, Entry{
				Dimension:      dim,
				Points:         c.Points,
				Condition:      c.Condition,
				Criteria:       c.Criteria,
				Feedback:       c.Feedback,
				Recommendation: c.Recommendation,
			})
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Points > entries[j].Points })
		r.entries[dim] = entries
	}
	for name, p := range b.EfficiencyProfiles {
		r.efficiency[grader.Difficulty(name)] = p
	}
	for name, p := range b.SafetyProfiles {
		r.safety[grader.Difficulty(name)] = p
	}
	return r, nil
}

// Default returns the registry built from the embedded default rubric.
func Default() *Registry {
	r, err := NewRegistry(DefaultBundle())
	if err != nil {
		panic(fmt.Sprintf("embedded default rubric failed validation: %v", err))
	}
	return r
}

// Load reads, validates and freezes a rubric file.
func Load(path string) (*Registry, error) {
	b, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(b)
}

// Version returns the rubric's declared version.
func (r *Registry) Version() string { return r.version }

// Lookup returns the entry for a dimension and point value.
func (r *Registry) Lookup(dim grader.Dimension, points int) (Entry, error) {
	entries, ok := r.entries[dim]
	if !ok {
		return Entry{}, &grader.ConfigError{Dimension: dim, Reason: "unknown dimension"}
	}
	for _, e := range entries {
		if e.Points == points {
			return e, nil
		}
	}
	return Entry{}, grader.NewEntryError(dim, points, "no rubric entry for point value")
}

// Entries returns a dimension's entries ordered from highest to lowest points.
// The returned slice is a copy.
func (r *Registry) Entries(dim grader.Dimension) []Entry {
	return append([]Entry(nil), r.entries[dim]...)
}

// Conditions returns every condition name referenced by the rubric, sorted.
func (r *Registry) Conditions() []string {
	seen := make(map[string]bool)
	for _, entries := range r.entries {
		for _, e := range entries {
			seen[e.Condition] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EfficiencyProfile returns the efficiency thresholds for a difficulty tier.
func (r *Registry) EfficiencyProfile(d grader.Difficulty) (EfficiencyProfile, error) {
	p, ok := r.efficiency[d]
	if !ok {
		return EfficiencyProfile{}, &grader.ConfigError{Dimension: grader.EfficiencyDeduction, Reason: fmt.Sprintf("unrecognized difficulty tier %q", d)}
	}
	return p, nil
}

// SafetyProfile returns the safety tolerances for a difficulty tier.
func (r *Registry) SafetyProfile(d grader.Difficulty) (SafetyProfile, error) {
	p, ok := r.safety[d]
	if !ok {
		return SafetyProfile{}, &grader.ConfigError{Dimension: grader.SafetyDeduction, Reason: fmt.Sprintf("unrecognized difficulty tier %q", d)}
	}
	return p, nil
}

// OrderThresholds returns the Labs/Orders Quality thresholds.
func (r *Registry) OrderThresholds() OrderThresholds { return r.orders }
