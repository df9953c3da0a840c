package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/medsim/case-eval/grader"
)

// WriteJSON writes the report as indented JSON. Map keys are emitted in sorted order,
// so identical reports are byte-identical.
func (r *ScoreReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Line is one dimension row of the text template.
type Line struct {
	Dimension grader.Dimension
	Title     string
	DimensionResult
}

// Section groups a composite's three dimension lines.
type Section struct {
	Title string
	Score int
	Max   int
	Lines []Line
}

var dimensionTitles = map[grader.Dimension]string{
	grader.InformationSharing:      "Information Sharing",
	grader.ResponsiveCommunication: "Responsive Communication",
	grader.EfficiencyDeduction:     "Efficiency Deduction",
	grader.LabsOrdersQuality:       "Labs/Orders Quality",
	grader.NoteThoughtProcess:      "Note Thought Process",
	grader.SafetyDeduction:         "Safety Deduction",
}

// Title returns the display name of a dimension.
func Title(dim grader.Dimension) string { return dimensionTitles[dim] }

// Sections returns the two composite sections in template order.
func (r *ScoreReport) Sections() []Section {
	sections := []Section{
		{Title: "Communication", Score: r.CommunicationScore, Max: grader.CompositeMax},
		{Title: "Medical Decision Making", Score: r.MDMScore, Max: grader.CompositeMax},
	}
	for _, dim := range grader.Dimensions {
		i := 0
		if dim.Composite() == grader.MedicalDecisionMaking {
			i = 1
		}
		sections[i].Lines = append(sections[i].Lines, Line{Dimension: dim, Title: Title(dim), DimensionResult: r.Dimensions[dim]})
	}
	return sections
}

var textTemplate = template.Must(template.New("report").Parse(`Learning objectives:
{{- range .LearningObjectives}}
  - {{.}}
{{- else}}
  (none)
{{- end}}
{{range .Sections}}
{{.Title}}: {{.Score}}/{{.Max}}
{{- range .Lines}}
  {{.Title}} ({{.Points}}): {{.Feedback}}
{{- end}}
{{end}}
Summary: {{.Summary}}
{{- if .Recommendations}}
Recommendations:
{{- range .Recommendations}}
  - {{.}}
{{- end}}
{{- end}}
`))

// WriteText renders the fixed feedback template.
func (r *ScoreReport) WriteText(w io.Writer) error {
	if err := textTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}
