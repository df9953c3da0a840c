package grader

// Classification is the CAU classifier's verdict on one student message.
// The quality flags (HighYield, ClosedLoop, Rationale) are judged by the same
// collaborator and only read when the matching content flag is set.
type Classification struct {
	IsQuestion            bool `json:"is_question" yaml:"is_question"`
	IsInstruction         bool `json:"is_instruction" yaml:"is_instruction"`
	IsAction              bool `json:"is_action" yaml:"is_action"`
	IsAcknowledgementOnly bool `json:"is_acknowledgement_only" yaml:"is_acknowledgement_only"`

	HighYield  bool `json:"high_yield" yaml:"high_yield"`
	ClosedLoop bool `json:"closed_loop" yaml:"closed_loop"`
	Rationale  bool `json:"rationale" yaml:"rationale"`
}

// IsCAU reports whether the message carries clinical content.
func (c Classification) IsCAU() bool {
	return c.IsQuestion || c.IsInstruction || c.IsAction
}

// IsQuestionOnly reports a question with no instruction or action.
func (c Classification) IsQuestionOnly() bool {
	return c.IsQuestion && !c.IsInstruction && !c.IsAction
}

// Directive reports whether the message instructs the counterpart or places an action.
func (c Classification) Directive() bool {
	return c.IsInstruction || c.IsAction
}

// Classifiable reports whether the verdict is usable: exactly one of
// "acknowledgement only" or "carries clinical content".
func (c Classification) Classifiable() bool {
	return c.IsAcknowledgementOnly != c.IsCAU()
}

// CAUClassifier labels the text of one student message.
// Implementations must be deterministic for identical text.
type CAUClassifier interface {
	Classify(text string) (Classification, error)
}

// CAUClassifierFunc adapts a function to CAUClassifier.
type CAUClassifierFunc func(text string) (Classification, error)

func (f CAUClassifierFunc) Classify(text string) (Classification, error) { return f(text) }

// NoteComparator judges whether the student's note addresses the same leading
// diagnosis and priorities as the reference note.
type NoteComparator interface {
	Compare(studentNote, referenceNote string, cc CaseContext) (Alignment, error)
}

// NoteComparatorFunc adapts a function to NoteComparator.
type NoteComparatorFunc func(studentNote, referenceNote string, cc CaseContext) (Alignment, error)

func (f NoteComparatorFunc) Compare(studentNote, referenceNote string, cc CaseContext) (Alignment, error) {
	return f(studentNote, referenceNote, cc)
}

// Collaborators bundles the injected text-understanding collaborators.
type Collaborators struct {
	Classifier CAUClassifier
	Comparator NoteComparator
}
