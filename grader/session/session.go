// Package session loads evaluation sessions: the transcript, orders, case metadata and
// any collaborator verdicts materialized upstream, from YAML or JSON files.
package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/collab"
)

// Session is the top-level session file.
type Session struct {
	ID          string        `yaml:"id"`
	Case        CaseSpec      `yaml:"case"`
	Messages    []MessageSpec `yaml:"messages"`
	Orders      []OrderSpec   `yaml:"orders"`
	StudentNote string        `yaml:"student_note"`

	// Verdicts is raw output of the external text-generation collaborator (JSON,
	// possibly malformed). When set it replaces the default classifier.
	Verdicts string `yaml:"verdicts,omitempty"`
	// NoteAlignment is a note verdict materialized upstream.
	NoteAlignment string `yaml:"note_alignment,omitempty"`
}

// CaseSpec is the case metadata.
type CaseSpec struct {
	ExpectedDiagnosis string        `yaml:"expected_diagnosis"`
	ExpectedTreatment []string      `yaml:"expected_treatment"`
	CaseGoals         []string      `yaml:"case_goals"`
	Difficulty        string        `yaml:"difficulty"`
	ReferenceNote     string        `yaml:"reference_note"`
	Unstable          bool          `yaml:"unstable"`
	OrderCatalog      []CatalogSpec `yaml:"order_catalog,omitempty"`
	StatusChanges     []int         `yaml:"status_changes,omitempty"`
}

// CatalogSpec is one authored order of the case catalog.
type CatalogSpec struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Tier     string `yaml:"tier"`
}

// MessageSpec is one transcript turn. Position defaults to the 1-based message index.
type MessageSpec struct {
	Role     string `yaml:"role"`
	Text     string `yaml:"text"`
	Position *int   `yaml:"position,omitempty"`
}

// OrderSpec is one placed order. Position is required: it places the order on the
// transcript timeline.
type OrderSpec struct {
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	Tier            string `yaml:"tier"`
	Position        *int   `yaml:"position"`
	OffsetMinutes   int    `yaml:"offset_minutes,omitempty"`
	Contraindicated bool   `yaml:"contraindicated,omitempty"`
}

// Load reads and parses a session file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes session data with strict field checking.
func Parse(data []byte) (*Session, error) {
	var s Session
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &s, nil
}

// LoadDir loads every .yaml, .yml and .json session in dir, sorted by file name.
func LoadDir(dir string) ([]*Session, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	sessions := make([]*Session, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Validate checks that all fields in the session are valid.
func (s *Session) Validate() error {
	if !grader.IsValidDifficulty(s.Case.Difficulty) {
		return fmt.Errorf("case: unknown difficulty %q; valid: %s", s.Case.Difficulty, strings.Join(grader.ValidDifficulties(), ", "))
	}
	for i, c := range s.Case.OrderCatalog {
		if c.Name == "" {
			return fmt.Errorf("case.order_catalog[%d]: name is required", i)
		}
		if !grader.IsValidTier(c.Tier) {
			return fmt.Errorf("case.order_catalog[%d] %q: unknown tier %q", i, c.Name, c.Tier)
		}
	}
	for i, m := range s.Messages {
		if !grader.IsValidRole(m.Role) {
			return fmt.Errorf("messages[%d]: unknown role %q; valid: student, counterpart", i, m.Role)
		}
	}
	for i, o := range s.Orders {
		prefix := fmt.Sprintf("orders[%d]", i)
		if o.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if !grader.IsValidTier(o.Tier) {
			return fmt.Errorf("%s %q: unknown tier %q; valid: %s", prefix, o.Name, o.Tier, strings.Join(grader.ValidTiers(), ", "))
		}
		if o.Position == nil {
			return fmt.Errorf("%s %q: position is required", prefix, o.Name)
		}
	}
	if s.NoteAlignment != "" && !grader.IsValidAlignment(s.NoteAlignment) {
		return fmt.Errorf("note_alignment: unknown value %q; valid: none, partial, aligned", s.NoteAlignment)
	}
	return nil
}

// Input converts the session into the engine's inbound contract.
func (s *Session) Input() grader.Input {
	in := grader.Input{
		ID:          s.ID,
		Messages:    make([]grader.Message, 0, len(s.Messages)),
		Orders:      make([]grader.Order, 0, len(s.Orders)),
		StudentNote: s.StudentNote,
		Case: grader.CaseContext{
			ExpectedDiagnosis: s.Case.ExpectedDiagnosis,
			ExpectedTreatment: s.Case.ExpectedTreatment,
			CaseGoals:         s.Case.CaseGoals,
			Difficulty:        grader.Difficulty(s.Case.Difficulty),
			ReferenceNote:     s.Case.ReferenceNote,
			Unstable:          s.Case.Unstable,
			StatusChanges:     s.Case.StatusChanges,
		},
	}
	for _, c := range s.Case.OrderCatalog {
		in.Case.OrderCatalog = append(in.Case.OrderCatalog, grader.CatalogOrder{Name: c.Name, Category: c.Category, Tier: grader.Tier(c.Tier)})
	}
	for i, m := range s.Messages {
		pos := i + 1
		if m.Position != nil {
			pos = *m.Position
		}
		in.Messages = append(in.Messages, grader.Message{Role: grader.Role(m.Role), Text: m.Text, Position: pos})
	}
	for _, o := range s.Orders {
		pos := 0
		if o.Position != nil {
			pos = *o.Position
		}
		in.Orders = append(in.Orders, grader.Order{
			Name:            o.Name,
			Category:        o.Category,
			Tier:            grader.Tier(o.Tier),
			Position:        pos,
			OffsetMinutes:   o.OffsetMinutes,
			Contraindicated: o.Contraindicated,
		})
	}
	return in
}

// Collaborators returns the collaborators for this session. Materialized verdicts take
// precedence over the defaults: Verdicts replaces the classifier (and the comparator
// when it carries a note alignment), and NoteAlignment replaces the comparator.
func (s *Session) Collaborators(defaults grader.Collaborators) (grader.Collaborators, error) {
	out := defaults
	if strings.TrimSpace(s.Verdicts) != "" {
		v, err := collab.ParseVerdicts(s.Verdicts)
		if err != nil {
			return grader.Collaborators{}, fmt.Errorf("session %s: %w", s.ID, err)
		}
		out.Classifier = v
		if v.NoteAlignment != "" {
			out.Comparator = v
		}
	}
	if s.NoteAlignment != "" {
		out.Comparator = collab.FixedAlignment(s.NoteAlignment)
	}
	return out, nil
}
