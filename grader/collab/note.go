package collab

import (
	"strings"

	"github.com/medsim/case-eval/grader"
)

// FixedAlignment is a comparator returning a verdict materialized elsewhere.
type FixedAlignment grader.Alignment

func (f FixedAlignment) Compare(_, _ string, _ grader.CaseContext) (grader.Alignment, error) {
	return grader.Alignment(f), nil
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "to": true, "in": true, "on": true,
	"for": true, "with": true, "or": true, "by": true, "at": true, "as": true, "is": true, "be": true,
	"acute": true, "possible": true, "likely": true,
}

// KeywordComparator judges alignment by keyword coverage of the expected diagnosis and
// treatment steps. Aligned needs the diagnosis and at least MinTreatmentCoverage of the
// treatment steps; partial needs either the diagnosis or one treatment step.
// When the case names no diagnosis, the reference note's keywords stand in for it.
type KeywordComparator struct {
	MinTreatmentCoverage float64
}

// NewKeywordComparator returns a comparator requiring half of the treatment steps.
func NewKeywordComparator() KeywordComparator {
	return KeywordComparator{MinTreatmentCoverage: 0.5}
}

func (k KeywordComparator) Compare(studentNote, referenceNote string, cc grader.CaseContext) (grader.Alignment, error) {
	note := keywordSet(studentNote)
	if len(note) == 0 {
		return grader.AlignmentNone, nil
	}
	var diagnosis bool
	if cc.ExpectedDiagnosis != "" {
		diagnosis = coversAll(note, cc.ExpectedDiagnosis)
	} else {
		diagnosis = overlap(note, keywordSet(referenceNote)) >= 0.5
	}

	hits := 0
	for _, step := range cc.ExpectedTreatment {
		if coversAll(note, step) {
			hits++
		}
	}
	coverage := 1.0
	if len(cc.ExpectedTreatment) > 0 {
		coverage = float64(hits) / float64(len(cc.ExpectedTreatment))
	}

	switch {
	case diagnosis && coverage >= k.MinTreatmentCoverage:
		return grader.AlignmentAligned, nil
	case diagnosis || hits > 0:
		return grader.AlignmentPartial, nil
	default:
		return grader.AlignmentNone, nil
	}
}

func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range tokenize(strings.ToLower(text)) {
		if !stopwords[w] {
			set[w] = true
		}
	}
	return set
}

// coversAll reports whether every keyword of phrase appears in the note.
func coversAll(note map[string]bool, phrase string) bool {
	keys := keywordSet(phrase)
	if len(keys) == 0 {
		return false
	}
	for k := range keys {
		if !note[k] {
			return false
		}
	}
	return true
}

// overlap returns the share of reference keywords present in the note.
func overlap(note, reference map[string]bool) float64 {
	if len(reference) == 0 {
		return 0
	}
	n := 0
	for k := range reference {
		if note[k] {
			n++
		}
	}
	return float64(n) / float64(len(reference))
}
