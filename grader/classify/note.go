package classify

import (
	"errors"
	"fmt"

	"github.com/medsim/case-eval/grader"
)

var errNoComparator = errors.New("no note comparator configured")

// NoteAlignment invokes the comparator exactly once and passes its verdict through.
func NoteAlignment(studentNote, referenceNote string, cc grader.CaseContext, comparator grader.NoteComparator) (grader.Alignment, error) {
	if comparator == nil {
		return "", &grader.ClassificationError{Collaborator: grader.CollaboratorComparator, Index: -1, Err: errNoComparator}
	}
	a, err := comparator.Compare(studentNote, referenceNote, cc)
	if err != nil {
		return "", &grader.ClassificationError{Collaborator: grader.CollaboratorComparator, Index: -1, Err: err}
	}
	if !grader.IsValidAlignment(string(a)) {
		return "", &grader.ClassificationError{
			Collaborator: grader.CollaboratorComparator,
			Index:        -1,
			Err:          fmt.Errorf("unknown alignment %q", a),
		}
	}
	return a, nil
}
