package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sirupsen/logrus"

	"github.com/medsim/case-eval/grader"
)

// MessageVerdict is the external model's classification of one message text.
type MessageVerdict struct {
	Text string `json:"text"`
	grader.Classification
}

// Verdicts is the materialized output of the external text-generation collaborator:
// per-message CAU flags and an optional note alignment.
type Verdicts struct {
	Messages      []MessageVerdict `json:"messages"`
	NoteAlignment grader.Alignment `json:"note_alignment,omitempty"`

	byText map[string]grader.Classification
}

// ErrNoVerdict is returned when a message or the note has no verdict.
var ErrNoVerdict = errors.New("no verdict")

// ParseVerdicts decodes model output. Code fences are stripped and malformed JSON
// (trailing commas, single quotes, truncated objects) is repaired before decoding.
// Conflicting verdicts for the same text are rejected.
func ParseVerdicts(raw string) (*Verdicts, error) {
	body := stripFences(raw)
	var v Verdicts
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return nil, fmt.Errorf("parsing verdicts: %w (repair failed: %v)", err, repairErr)
		}
		logrus.Warnf("verdicts: repaired malformed model output (%v)", err)
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, fmt.Errorf("parsing repaired verdicts: %w", err)
		}
	}
	if v.NoteAlignment != "" && !grader.IsValidAlignment(string(v.NoteAlignment)) {
		return nil, fmt.Errorf("verdicts: unknown note_alignment %q", v.NoteAlignment)
	}
	v.byText = make(map[string]grader.Classification, len(v.Messages))
	for i, m := range v.Messages {
		key := grader.NormalizeText(m.Text)
		if prev, ok := v.byText[key]; ok && prev != m.Classification {
			return nil, fmt.Errorf("verdicts: messages[%d] conflicts with an earlier verdict for %q", i, m.Text)
		}
		v.byText[key] = m.Classification
	}
	return &v, nil
}

// Classify returns the verdict recorded for text.
func (v *Verdicts) Classify(text string) (grader.Classification, error) {
	c, ok := v.byText[grader.NormalizeText(text)]
	if !ok {
		return grader.Classification{}, fmt.Errorf("%w for message %q", ErrNoVerdict, text)
	}
	return c, nil
}

// Compare returns the recorded note alignment.
func (v *Verdicts) Compare(_, _ string, _ grader.CaseContext) (grader.Alignment, error) {
	if v.NoteAlignment == "" {
		return "", fmt.Errorf("%w for the progress note", ErrNoVerdict)
	}
	return v.NoteAlignment, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
