package grader

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks rubric or case configuration that the engine cannot score against.
	ErrConfiguration = errors.New("configuration error")
	// ErrClassificationUnavailable marks a collaborator failure or an unclassifiable verdict.
	// The whole evaluation fails; no score is guessed.
	ErrClassificationUnavailable = errors.New("classification unavailable")
)

// ConfigError describes a configuration inconsistency. Dimension and Points are set
// when the error concerns a specific rubric entry.
type ConfigError struct {
	Dimension Dimension
	Points    *int
	Reason    string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Dimension != "" && e.Points != nil:
		return fmt.Sprintf("configuration error: %s points=%d: %s", e.Dimension, *e.Points, e.Reason)
	case e.Dimension != "":
		return fmt.Sprintf("configuration error: %s: %s", e.Dimension, e.Reason)
	default:
		return "configuration error: " + e.Reason
	}
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// NewEntryError builds a ConfigError for a specific dimension and point value.
func NewEntryError(dim Dimension, points int, reason string) *ConfigError {
	return &ConfigError{Dimension: dim, Points: &points, Reason: reason}
}

// Collaborator names used in ClassificationError.
const (
	CollaboratorClassifier = "cau-classifier"
	CollaboratorComparator = "note-comparator"
)

// ClassificationError reports which collaborator failed and on which input.
// Index is the message index for the CAU classifier and -1 for the note comparator.
type ClassificationError struct {
	Collaborator string
	Index        int
	Err          error
}

func (e *ClassificationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s at messages[%d]: %v", ErrClassificationUnavailable, e.Collaborator, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrClassificationUnavailable, e.Collaborator, e.Err)
}

// Unwrap exposes both the sentinel and the collaborator's own error.
func (e *ClassificationError) Unwrap() []error {
	return []error{ErrClassificationUnavailable, e.Err}
}
